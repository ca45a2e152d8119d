package tools

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Tool name constants for the local (no-network) tools registered with Genkit.
const (
	// GetWeatherName is the Genkit tool name for the weather lookup.
	GetWeatherName = "get_weather"
	// CalculateName is the Genkit tool name for arithmetic evaluation.
	CalculateName = "calculate"
	// CurrentTimeName is the Genkit tool name for the timezone clock.
	CurrentTimeName = "current_time"
)

// WeatherInput defines input for the get_weather tool.
type WeatherInput struct {
	City string `json:"city" jsonschema_description:"City name, e.g. 'Tokyo' or 'New York'"`
}

// CalculateInput defines input for the calculate tool.
type CalculateInput struct {
	Expression string `json:"expression" jsonschema_description:"Arithmetic expression using numbers, + - * / and parentheses, e.g. '(2+3)*4'"`
}

// CurrentTimeInput defines input for the current_time tool.
type CurrentTimeInput struct {
	Timezone string `json:"timezone,omitempty" jsonschema_description:"IANA timezone name, e.g. 'Asia/Tokyo'. Empty means UTC"`
}

// weatherTable is the canned conditions data served by get_weather.
// The tool is a stub: it reports plausible fixed conditions and says so
// in its description, it does not call a weather API.
var weatherTable = map[string]string{
	"tokyo":    "Sunny, 22°C (72°F), Wind: 10 km/h",
	"new york": "Partly cloudy, 18°C (64°F), Wind: 15 km/h",
	"london":   "Rainy, 12°C (54°F), Wind: 20 km/h",
	"paris":    "Clear, 16°C (61°F), Wind: 8 km/h",
}

const defaultWeather = "Mild, 20°C (68°F), Wind: 12 km/h"

// Basics holds dependencies for the local tool handlers.
// Use NewBasics to create an instance, then RegisterBasics to register
// the handlers with Genkit.
type Basics struct {
	logger *slog.Logger
}

// NewBasics creates a Basics instance.
func NewBasics(logger *slog.Logger) (*Basics, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Basics{logger: logger}, nil
}

// RegisterBasics registers the local tools with Genkit.
// Tools are registered with event emission wrappers for streaming support.
func RegisterBasics(g *genkit.Genkit, b *Basics) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if b == nil {
		return nil, fmt.Errorf("Basics is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, GetWeatherName,
			"Get current weather conditions for a city. "+
				"Returns: a conditions string with temperature and wind. "+
				"NOTE: This is demonstration data from a fixed table, not a live weather feed; "+
				"tell the user the report is indicative, not live.",
			WithEvents(GetWeatherName, b.Weather)),
		genkit.DefineTool(g, CalculateName,
			"Evaluate an arithmetic expression safely. "+
				"Supports: numbers, + - * /, parentheses and unary minus. Nothing else. "+
				"Use this for any calculation instead of doing arithmetic yourself. "+
				"Returns: the numeric result. Invalid expressions return a descriptive error.",
			WithEvents(CalculateName, b.Calculate)),
		genkit.DefineTool(g, CurrentTimeName,
			"Get the current date and time, optionally for a specific IANA timezone "+
				"(e.g. 'Asia/Tokyo', 'America/New_York'). Defaults to UTC. "+
				"Returns: formatted time, timezone name, UTC offset and weekday. "+
				"You MUST call this tool before answering ANY question about current dates or times.",
			WithEvents(CurrentTimeName, b.CurrentTime)),
	}, nil
}

// Weather returns canned conditions for the requested city.
func (b *Basics) Weather(_ *ai.ToolContext, input WeatherInput) (Result, error) {
	city := strings.TrimSpace(input.City)
	if city == "" {
		return errorResult(ErrCodeValidation, "city is required"), nil
	}

	conditions, ok := weatherTable[strings.ToLower(city)]
	if !ok {
		conditions = defaultWeather
	}
	b.logger.Debug("weather lookup", "city", city, "known", ok)

	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Weather in %s: %s", city, conditions),
		Data: map[string]any{
			"city":       city,
			"conditions": conditions,
			"live":       false,
		},
	}, nil
}

// Calculate evaluates a restricted arithmetic expression.
// Anything outside the closed grammar comes back as an invalid_expression
// tool error, never as a crash and never via an expression evaluator.
func (b *Basics) Calculate(_ *ai.ToolContext, input CalculateInput) (Result, error) {
	value, err := Evaluate(input.Expression)
	if err != nil {
		b.logger.Debug("calculate rejected", "expression", input.Expression, "error", err)
		return errorResultDetails(ErrCodeInvalidExpression,
			"expression is not valid arithmetic",
			err.Error()), nil
	}

	formatted := formatNumber(value)
	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("%s = %s", strings.TrimSpace(input.Expression), formatted),
		Data: map[string]any{
			"expression": strings.TrimSpace(input.Expression),
			"result":     value,
			"formatted":  formatted,
		},
	}, nil
}

// CurrentTime returns the current time in the requested timezone.
func (b *Basics) CurrentTime(_ *ai.ToolContext, input CurrentTimeInput) (Result, error) {
	zone := strings.TrimSpace(input.Timezone)
	if zone == "" {
		zone = "UTC"
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		b.logger.Debug("timezone lookup failed", "timezone", zone, "error", err)
		return errorResultDetails(ErrCodeInvalidTimezone,
			fmt.Sprintf("unknown timezone %q", zone),
			"use an IANA name such as 'Asia/Tokyo' or 'Europe/London'"), nil
	}

	now := time.Now().In(loc)
	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Current time in %s: %s", zone, now.Format("2006-01-02 15:04:05 MST")),
		Data: map[string]any{
			"time":       now.Format("2006-01-02 15:04:05"),
			"iso8601":    now.Format(time.RFC3339),
			"timezone":   zone,
			"utc_offset": now.Format("-07:00"),
			"weekday":    now.Weekday().String(),
			"timestamp":  now.Unix(),
		},
	}, nil
}
