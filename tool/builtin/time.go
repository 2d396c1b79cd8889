package builtin

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/TSGCFO/langchain-agent/tool"
)

// CurrentTimeInput is the argument shape of the current_time tool.
type CurrentTimeInput struct {
	Format   string `json:"format,omitempty" jsonschema:"description=Go time layout; defaults to RFC3339"`
	Location string `json:"location,omitempty" jsonschema:"description=IANA time zone such as Europe/Berlin; defaults to UTC"`
}

// NewCurrentTime returns the current_time tool. now may be nil.
func NewCurrentTime(now func() time.Time) tool.Tool {
	if now == nil {
		now = time.Now
	}
	return tool.NewFunctionToolFromStruct("current_time",
		"Returns the current date and time, optionally in a given time zone and layout.",
		CurrentTimeInput{},
		func(_ context.Context, args map[string]any) (any, error) {
			format, _ := args["format"].(string)
			if format == "" {
				format = time.RFC3339
			}
			loc := time.UTC
			if name, _ := args["location"].(string); name != "" {
				var err error
				loc, err = time.LoadLocation(name)
				if err != nil {
					return nil, fmt.Errorf("invalid location: %w", err)
				}
			}
			return map[string]any{"current_time": now().In(loc).Format(format)}, nil
		})
}
