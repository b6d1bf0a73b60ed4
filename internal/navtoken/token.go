package navtoken

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Version is bumped whenever the layout or meaning of a token changes.
// Tokens carrying any other version are stale.
const Version = "100624"

// MaxLength is the size limit the chat platform puts on callback data
const MaxLength = 64

const (
	fieldSep = "_"
	argsSep  = "|"
)

var (
	ErrStaleVersion = errors.New("navigation token has a stale version")
	ErrMalformed    = errors.New("malformed navigation token")
	ErrTooLong      = errors.New("navigation token exceeds callback size limit")
)

// Domain is the first token field
type Domain int

const (
	DomainNull Domain = iota
	DomainItem
	DomainSubscription
)

var domainNames = map[Domain]string{
	DomainNull:         "null",
	DomainItem:         "item",
	DomainSubscription: "subscription",
}

func (d Domain) String() string {
	if name, ok := domainNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Domain(%d)", int(d))
}

// Action is the pending operation carried by an item token
type Action int

const (
	ActionNone Action = iota
	ActionUpdate
	ActionDownload
	ActionTrack
)

var actionNames = map[Action]string{
	ActionUpdate:   "update",
	ActionDownload: "download",
	ActionTrack:    "track",
}

func (a Action) String() string {
	if a == ActionNone {
		return "none"
	}
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

func parseAction(s string) (Action, bool) {
	for a, name := range actionNames {
		if name == s {
			return a, true
		}
	}
	return ActionNone, false
}

// Kind is the navigation step a decoded token leads to
type Kind int

const (
	KindNull Kind = iota
	KindSubscription
	KindTranslators // list translators of an item
	KindSeasons     // list seasons for a translator
	KindEpisodes    // list episodes of a season
	KindEpisode     // one episode's direct URLs
	KindFilm        // a film's direct URLs
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindSubscription:
		return "subscription"
	case KindTranslators:
		return "translators"
	case KindSeasons:
		return "seasons"
	case KindEpisodes:
		return "episodes"
	case KindEpisode:
		return "episode"
	case KindFilm:
		return "film"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Token is the UI navigation state carried in callback data.
// Empty string IDs are absent, as is a nil or empty TranslatorArgs.
type Token struct {
	Domain         Domain
	ItemID         string
	IsFilm         bool
	TranslatorID   string
	TranslatorArgs map[string]string
	SeasonID       string
	EpisodeID      string
	Action         Action
}

// Kind classifies the step the token navigates to
func (t Token) Kind() Kind {
	switch t.Domain {
	case DomainSubscription:
		return KindSubscription
	case DomainItem:
	default:
		return KindNull
	}

	switch {
	case t.TranslatorID == "":
		return KindTranslators
	case t.IsFilm:
		return KindFilm
	case t.SeasonID == "":
		return KindSeasons
	case t.EpisodeID == "":
		return KindEpisodes
	default:
		return KindEpisode
	}
}

func (t Token) validate() error {
	if t.Domain != DomainItem {
		return nil
	}
	if t.ItemID == "" {
		return fmt.Errorf("%w: missing item id", ErrMalformed)
	}
	if t.TranslatorID == "" && (t.SeasonID != "" || t.Action != ActionNone) {
		return fmt.Errorf("%w: season or action without translator", ErrMalformed)
	}
	if t.EpisodeID != "" && t.SeasonID == "" {
		return fmt.Errorf("%w: episode without season", ErrMalformed)
	}
	for _, id := range []string{t.ItemID, t.TranslatorID, t.SeasonID, t.EpisodeID} {
		if strings.ContainsAny(id, fieldSep+argsSep) {
			return fmt.Errorf("%w: id %q contains a separator", ErrMalformed, id)
		}
	}
	return nil
}

// Encode renders the token as
// item_<version>_<item>_<0|1>[_<translator>|<args>[_<season>[_<episode>]]][_<action>].
// Non-item domains render as their bare name.
func Encode(t Token) string {
	if t.Domain != DomainItem {
		return t.Domain.String()
	}

	film := "0"
	if t.IsFilm {
		film = "1"
	}

	fields := []string{DomainItem.String(), Version, t.ItemID, film}
	if t.TranslatorID != "" {
		fields = append(fields, t.TranslatorID+argsSep+encodeArgs(t.TranslatorArgs))
		if t.SeasonID != "" {
			fields = append(fields, t.SeasonID)
			if t.EpisodeID != "" {
				fields = append(fields, t.EpisodeID)
			}
		}
		if t.Action != ActionNone {
			fields = append(fields, t.Action.String())
		}
	}

	return strings.Join(fields, fieldSep)
}

// EncodeChecked is Encode plus structure and size validation
func EncodeChecked(t Token) (string, error) {
	if err := t.validate(); err != nil {
		return "", err
	}

	s := Encode(t)
	if len(s) > MaxLength {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLong, len(s))
	}
	return s, nil
}

// Decode parses a token. A version other than Version yields ErrStaleVersion
// and the rest of the token is not interpreted.
func Decode(s string) (Token, error) {
	fields := strings.Split(s, fieldSep)

	switch fields[0] {
	case DomainNull.String():
		return Token{Domain: DomainNull}, nil
	case DomainSubscription.String():
		return Token{Domain: DomainSubscription}, nil
	case DomainItem.String():
	default:
		return Token{}, fmt.Errorf("%w: unknown domain %q", ErrMalformed, fields[0])
	}

	if len(fields) < 2 {
		return Token{}, fmt.Errorf("%w: missing version", ErrMalformed)
	}
	if fields[1] != Version {
		return Token{}, ErrStaleVersion
	}
	if len(fields) < 4 {
		return Token{}, fmt.Errorf("%w: missing item fields", ErrMalformed)
	}

	t := Token{Domain: DomainItem, ItemID: fields[2]}
	switch fields[3] {
	case "0":
	case "1":
		t.IsFilm = true
	default:
		return Token{}, fmt.Errorf("%w: film flag %q", ErrMalformed, fields[3])
	}

	rest := fields[4:]
	if len(rest) == 0 {
		return t, t.validate()
	}

	translatorID, rawArgs, _ := strings.Cut(rest[0], argsSep)
	args, err := decodeArgs(rawArgs)
	if err != nil {
		return Token{}, err
	}
	t.TranslatorID = translatorID
	t.TranslatorArgs = args
	rest = rest[1:]

	// Older download and track buttons put the action before season/episode
	if len(rest) > 0 {
		if a, ok := parseAction(rest[0]); ok {
			t.Action = a
			rest = rest[1:]
		}
	}
	if len(rest) > 0 && t.Action == ActionNone {
		if a, ok := parseAction(rest[len(rest)-1]); ok {
			t.Action = a
			rest = rest[:len(rest)-1]
		}
	}

	switch len(rest) {
	case 0:
	case 1:
		t.SeasonID = rest[0]
	case 2:
		t.SeasonID, t.EpisodeID = rest[0], rest[1]
	default:
		return Token{}, fmt.Errorf("%w: %d trailing fields", ErrMalformed, len(rest))
	}

	if err := t.validate(); err != nil {
		return Token{}, err
	}
	return t, nil
}

// encodeArgs renders args as a sorted query string. Underscores are
// escaped so the result never collides with the field separator.
func encodeArgs(args map[string]string) string {
	if len(args) == 0 {
		return ""
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, escape(k)+"="+escape(args[k]))
	}
	return strings.Join(parts, "&")
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), fieldSep, "%5F")
}

// decodeArgs is the inverse of encodeArgs. No arguments decode to nil,
// matching how Encode treats nil and empty maps alike.
func decodeArgs(raw string) (map[string]string, error) {
	var args map[string]string
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("%w: argument key: %v", ErrMalformed, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("%w: argument value: %v", ErrMalformed, err)
		}
		if args == nil {
			args = make(map[string]string)
		}
		args[key] = value
	}
	return args, nil
}
