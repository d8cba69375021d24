package grabber

import "strings"

// acceptedPrefixes are the schemes a page URL may start with.
var acceptedPrefixes = []string{"http://", "https://", "//"}

// Classification is the result of sorting input strings into fetchable and
// rejected page URLs.
type Classification struct {
	// Accepted holds each fetchable URL once, in first-seen order.
	Accepted []string
	// Rejected holds every other input in input order, duplicates included.
	Rejected []string
}

// Classify partitions pages by scheme. Uniqueness of accepted URLs is exact
// string equality: "http://a.com" and "http://a.com/" are distinct.
func Classify(pages []string) Classification {
	var out Classification
	seen := make(map[string]bool, len(pages))
	for _, p := range pages {
		if !isFetchable(p) {
			out.Rejected = append(out.Rejected, p)
			continue
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out.Accepted = append(out.Accepted, p)
	}
	return out
}

func isFetchable(page string) bool {
	for _, prefix := range acceptedPrefixes {
		if strings.HasPrefix(page, prefix) {
			return true
		}
	}
	return false
}
