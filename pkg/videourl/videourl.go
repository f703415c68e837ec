package videourl

import (
	"net/url"
	"regexp"
	"strings"
)

type Host string

const (
	HostYouTube Host = "youtube"
	HostVimeo   Host = "vimeo"
)

// Video identifies a video on a recognized host.
type Video struct {
	Host Host
	ID   string
}

var (
	youtubeID    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	vimeoID      = regexp.MustCompile(`^[0-9]{6,12}$`)
	youtubeHosts = map[string]bool{
		"youtube.com":              true,
		"www.youtube.com":          true,
		"m.youtube.com":            true,
		"music.youtube.com":        true,
		"youtube-nocookie.com":     true,
		"www.youtube-nocookie.com": true,
	}
	vimeoHosts = map[string]bool{
		"vimeo.com":        true,
		"www.vimeo.com":    true,
		"player.vimeo.com": true,
	}
)

// Parse recognizes YouTube watch, short, embed, live and youtu.be links with an
// 11 character id, and Vimeo links with a numeric id.
func Parse(raw string) (Video, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Video{}, false
	}

	host := strings.ToLower(u.Hostname())
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })

	switch {
	case host == "youtu.be":
		if len(segments) > 0 && youtubeID.MatchString(segments[0]) {
			return Video{Host: HostYouTube, ID: segments[0]}, true
		}
	case youtubeHosts[host]:
		if id := u.Query().Get("v"); len(segments) == 1 && segments[0] == "watch" {
			if youtubeID.MatchString(id) {
				return Video{Host: HostYouTube, ID: id}, true
			}
			return Video{}, false
		}
		if len(segments) >= 2 {
			switch segments[0] {
			case "embed", "shorts", "v", "live", "e":
				if youtubeID.MatchString(segments[1]) {
					return Video{Host: HostYouTube, ID: segments[1]}, true
				}
			}
		}
	case vimeoHosts[host]:
		if host == "player.vimeo.com" {
			if len(segments) >= 2 && segments[0] == "video" && vimeoID.MatchString(segments[1]) {
				return Video{Host: HostVimeo, ID: segments[1]}, true
			}
			return Video{}, false
		}
		if len(segments) > 0 && vimeoID.MatchString(segments[len(segments)-1]) {
			return Video{Host: HostVimeo, ID: segments[len(segments)-1]}, true
		}
	}

	return Video{}, false
}

func IsRecognized(raw string) bool {
	_, ok := Parse(raw)
	return ok
}
