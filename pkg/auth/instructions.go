package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCredentialGuide explains where both secrets come from
func ShowCredentialGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "CREDENTIALS")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "1. Platform API token")
	fmt.Fprintln(w, "   - Sign in to https://console.apify.com")
	fmt.Fprintln(w, "   - Settings -> API & Integrations -> copy the personal API token")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "2. Instagram session id")
	fmt.Fprintln(w, "   - Log in at https://www.instagram.com in your browser")
	fmt.Fprintln(w, "   - Open developer tools (F12) -> Application/Storage -> Cookies")
	fmt.Fprintln(w, "   - Copy the value of the 'sessionid' cookie")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Either export them:")
	fmt.Fprintln(w, "   export APIFY_TOKEN=...")
	fmt.Fprintln(w, "   export SESSION_ID=...")
	fmt.Fprintln(w, "or store them in the system keychain with 'ighashtag auth login'.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The session id grants full access to the Instagram account. Prefer a")
	fmt.Fprintln(w, "secondary account and never share it.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
