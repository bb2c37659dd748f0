package blocks

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("weather", newWeather) }

type weatherConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
	// Station is an ICAO station identifier such as "EDDF".
	Station string `toml:"station"`
}

type weatherBlock struct {
	every   Interval
	formats *Formats
	station string
	client  interface {
		Fetch(ctx context.Context, station string) (monitor.WeatherStats, error)
	}
	now func() time.Time
}

func newWeather(dec Decoder) (Block, error) {
	var cfg weatherConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Station) == "" {
		return nil, errors.New("station is required")
	}
	formats, err := cfg.Build("$station.str() $temp.eng(2)")
	if err != nil {
		return nil, err
	}
	return &weatherBlock{
		every:   interval(cfg.Interval, 600),
		formats: formats,
		station: cfg.Station,
		client:  monitor.NewWeatherClient(),
		now:     time.Now,
	}, nil
}

func (b *weatherBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	return updater{every: b.every, formats: b.formats, update: b.update}.run(ctx, api, events)
}

func (b *weatherBlock) update(ctx context.Context, api *API) error {
	stats, err := b.client.Fetch(ctx, b.station)
	if err != nil {
		if stats.LastUpdate.IsZero() {
			return fail("weather", "failed to fetch weather", err)
		}
		api.Log.Warn().Err(err).Time("last_update", stats.LastUpdate).Msg("showing stale weather report")
	}
	if err := api.SetIcon(weatherIcon(stats)); err != nil {
		return fail("weather", "missing icon", err)
	}
	api.Update(weatherValues(stats, b.now()), widget.StateIdle)
	return nil
}

func weatherValues(s monitor.WeatherStats, now time.Time) formatting.Values {
	values := formatting.Values{
		"station":    formatting.Text(s.StationID),
		"temp":       formatting.Number(s.Temperature).Degrees(),
		"humidity":   formatting.Number(s.Humidity).Percents(),
		"wind":       formatting.Number(s.WindSpeed),
		"wind_kmh":   formatting.Number(s.WindSpeed * 3.6),
		"direction":  formatting.Text(monitor.CompassDirection(s.WindDirection)),
		"conditions": formatting.Text(s.Condition),
		"updated":    formatting.Text(humanize.RelTime(s.LastUpdate, now, "ago", "from now")),
	}
	if s.Pressure > 0 {
		values["pressure"] = formatting.Number(s.Pressure)
	}
	return values
}

// weatherIcon picks an icon from the decoded conditions, most severe first.
func weatherIcon(s monitor.WeatherStats) string {
	c := s.Condition
	switch {
	case strings.Contains(c, "thunder"):
		return "weather_thunder"
	case strings.Contains(c, "snow"), strings.Contains(c, "ice"), strings.Contains(c, "hail"):
		return "weather_snow"
	case strings.Contains(c, "rain"), strings.Contains(c, "drizzle"), strings.Contains(c, "shower"):
		return "weather_rain"
	case strings.Contains(c, "cloud"), strings.Contains(c, "overcast"), strings.Contains(c, "fog"), strings.Contains(c, "mist"):
		return "weather_clouds"
	case c == "clear":
		return "weather_sun"
	}
	return "weather_default"
}
