// Package posts flattens hashtag scraper dataset items into fixed-column
// CSV rows: username, caption, likes, comments, hashtags, post_url,
// timestamp and location.
//
// Location is not a platform field. It is read from the caption, taking the
// text after the first 📍 up to the end of that line or the next '#'.
package posts
