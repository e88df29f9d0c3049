package assets

import "embed"

// regions.json holds the curated sampling regions: bounding boxes covering
// the New Zealand land mass plus the Chatham Islands.
//
//go:embed regions.json
var FS embed.FS

func RegionsJSON() ([]byte, error) {
	return FS.ReadFile("regions.json")
}
