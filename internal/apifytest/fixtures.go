package apifytest

// SamplePosts returns dataset items shaped like the hashtag actor's output
func SamplePosts() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"ownerUsername": "biryani_hunter",
			"caption":       "Best dum biryani in town 📍Jubilee Hills #foodie #biryani",
			"likesCount":    1520,
			"commentsCount": 48,
			"hashtags":      []string{"foodie", "biryani"},
			"url":           "https://www.instagram.com/p/C1a2b3c4d5/",
			"timestamp":     "2024-03-01T12:30:00.000Z",
		},
		{
			"ownerUsername": "chai_and_chaat",
			"caption":       "Evening snacks, \"pani puri\" edition 📍Banjara Hills\n#hyderabad",
			"likesCount":    87,
			"commentsCount": 3,
			"hashtags":      []string{"hyderabad"},
			"url":           "https://www.instagram.com/p/D9e8f7g6h5/",
			"timestamp":     "2024-03-02T18:05:00.000Z",
		},
		{
			"ownerUsername": "plainplates",
			"caption":       nil,
			"likesCount":    nil,
			"url":           "https://www.instagram.com/p/E1f2g3h4i5/",
			"timestamp":     "2024-03-03T09:00:00.000Z",
		},
	}
}
