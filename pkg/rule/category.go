package rule

import (
	"fmt"
	"strings"
)

// Category is the input channel a rule set applies to.
type Category string

const (
	CategoryChat           Category = "chat"
	CategoryCommand        Category = "command"
	CategorySign           Category = "sign"
	CategoryBook           Category = "book"
	CategoryAnvil          Category = "anvil"
	CategoryPrivateMessage Category = "private_message"
	CategoryMail           Category = "mail"

	// CategoryGlobal marks rules merged into every other category.
	// It is assigned by the loader to rules read from the global file only.
	CategoryGlobal Category = "global"
)

// Categories returns every user-facing category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryChat,
		CategoryCommand,
		CategorySign,
		CategoryBook,
		CategoryAnvil,
		CategoryPrivateMessage,
		CategoryMail,
	}
}

// ParseCategory parses a user-facing category name. "global" is rejected.
func ParseCategory(s string) (Category, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")

	switch normalized {
	case "pm", "msg", "private", "privatemessage":
		return CategoryPrivateMessage, nil
	case "cmd", "commands":
		return CategoryCommand, nil
	}

	for _, c := range Categories() {
		if string(c) == normalized {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) String() string {
	return string(c)
}
