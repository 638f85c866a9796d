package tools

import (
	"context"
	"fmt"
	"time"
)

// DateTimeHandler answers get_current_datetime calls locally, so the
// model can anchor answers in the user's current time without a
// network round-trip.
type DateTimeHandler struct {
	// now is swappable for tests.
	now func() time.Time
}

func NewDateTimeHandler() *DateTimeHandler {
	return &DateTimeHandler{now: time.Now}
}

const toolGetCurrentDatetime = "get_current_datetime"

func (h *DateTimeHandler) Tools() []Descriptor {
	return []Descriptor{
		{
			Name:        toolGetCurrentDatetime,
			Description: "Returns the current date and time. Use when the user asks about the current time, date, or day of week.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]PropertySchema{
					"format": {
						Type:        "string",
						Description: "Output format of the datetime",
						Enum:        []string{"short", "full", "time_only", "date_only"},
					},
					"timezone_offset": {
						Type:        "integer",
						Description: "Timezone offset from UTC in minutes. Defaults to the local timezone.",
					},
				},
			},
		},
	}
}

func (h *DateTimeHandler) CanHandle(name string) bool {
	return name == toolGetCurrentDatetime
}

func (h *DateTimeHandler) Call(ctx context.Context, name string, args map[string]interface{}) Result {
	if name != toolGetCurrentDatetime {
		return CallError{ToolName: name, Message: fmt.Sprintf("unknown tool: %s", name)}
	}

	now := h.now()
	if _, ok := args["timezone_offset"]; ok {
		offset := GetIntParam(args, "timezone_offset", 0)
		now = now.UTC().In(time.FixedZone("", offset*60))
	}

	var text string
	switch GetStringParam(args, "format", "full") {
	case "short":
		text = now.Format("02.01.2006 15:04")
	case "time_only":
		text = now.Format("15:04:05")
	case "date_only":
		text = now.Format("Monday, 2 January 2006")
	default:
		text = now.Format("Monday, 2 January 2006, 15:04:05 MST")
	}

	return Success{
		ToolName: name,
		Content:  []Content{TextContent{Text: text}},
	}
}
