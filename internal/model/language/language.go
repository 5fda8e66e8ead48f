package language

import "strings"

// Language is a reply language the assistant can be asked to use. The set is
// closed: only the values returned by Seed are accepted anywhere.
type Language struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	NativeName  string `json:"nativeName"`
	Placeholder string `json:"placeholder,omitempty"` // 输入框提示语
}

const (
	English = "english"
	Spanish = "spanish"
)

// Default is used when a session is created without an explicit language.
const Default = English

// Seed provides the supported reply languages.
func Seed() []Language {
	return []Language{
		{
			ID:          English,
			Name:        "English",
			NativeName:  "English",
			Placeholder: "Type your message...",
		},
		{
			ID:          Spanish,
			Name:        "Spanish",
			NativeName:  "Español",
			Placeholder: "Escribe tu mensaje...",
		},
	}
}

// Normalize lowercases and trims a raw selector value so "  English" and
// "english" resolve to the same language.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
