package monitor

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultMETARURL serves raw METAR reports; %s is the station id.
const DefaultMETARURL = "https://aviationweather.gov/api/data/metar?ids=%s&format=raw"

var (
	windRegex    = regexp.MustCompile(`^(\d{3}|VRB)(\d{2,3})(?:G(\d{2,3}))?(KT|MPS)$`)
	tempRegex    = regexp.MustCompile(`^(M?\d{2})/(M?\d{2})?$`)
	altRegex     = regexp.MustCompile(`^A(\d{4})$`)
	qnhRegex     = regexp.MustCompile(`^Q(\d{4})$`)
	visRegex     = regexp.MustCompile(`^(\d+)SM$`)
	visFracRegex = regexp.MustCompile(`^(\d+)/(\d+)SM$`)
	cloudRegex   = regexp.MustCompile(`^(SKC|CLR|NSC|FEW|SCT|BKN|OVC|VV)(\d{3})?`)
)

// WeatherStats contains weather data decoded from a METAR report.
type WeatherStats struct {
	StationID string
	// Temperature and DewPoint are in degrees Celsius.
	Temperature float64
	DewPoint    float64
	// Humidity is the relative humidity in percent.
	Humidity float64
	// Pressure is in hPa.
	Pressure float64
	// WindSpeed and WindGust are in meters per second.
	WindSpeed float64
	WindGust  float64
	// WindDirection is in degrees; -1 means variable.
	WindDirection int
	// Visibility is in statute miles.
	Visibility float64
	Condition  string
	Cloud      string
	RawMETAR   string
	LastUpdate time.Time
}

// WeatherClient fetches METAR reports with a per-station cache. METAR data
// updates roughly every hour, so requests inside MinInterval are served
// from the cache.
type WeatherClient struct {
	URL         string
	HTTPClient  *http.Client
	MinInterval time.Duration

	mu    sync.Mutex
	cache map[string]WeatherStats
	now   func() time.Time
}

// NewWeatherClient creates a WeatherClient against the aviationweather.gov API.
func NewWeatherClient() *WeatherClient {
	return &WeatherClient{
		URL:         DefaultMETARURL,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		MinInterval: 10 * time.Minute,
		cache:       make(map[string]WeatherStats),
		now:         time.Now,
	}
}

// Fetch returns the weather at station. When the fetch fails and an older
// report is cached, the stale report is returned along with the error.
func (c *WeatherClient) Fetch(ctx context.Context, station string) (WeatherStats, error) {
	station = strings.ToUpper(strings.TrimSpace(station))
	if station == "" {
		return WeatherStats{}, NewComponentError(ErrorSourceWeather, fmt.Errorf("station ID is required"))
	}

	c.mu.Lock()
	cached, ok := c.cache[station]
	c.mu.Unlock()
	if ok && c.now().Sub(cached.LastUpdate) < c.MinInterval {
		return cached, nil
	}

	stats, err := c.fetchMETAR(ctx, station)
	if err != nil {
		return cached, NewComponentError(ErrorSourceWeather, err)
	}

	c.mu.Lock()
	c.cache[station] = stats
	c.mu.Unlock()
	return stats, nil
}

func (c *WeatherClient) fetchMETAR(ctx context.Context, station string) (WeatherStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(c.URL, station), nil)
	if err != nil {
		return WeatherStats{}, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return WeatherStats{}, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WeatherStats{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return WeatherStats{}, fmt.Errorf("read failed: %w", err)
	}

	// The API may return several reports, newest first.
	raw, _, _ := strings.Cut(strings.TrimSpace(string(body)), "\n")
	if raw == "" || strings.Contains(raw, "No data found") {
		return WeatherStats{}, fmt.Errorf("no data for station %s", station)
	}

	stats := ParseMETAR(station, raw)
	stats.LastUpdate = c.now()
	return stats, nil
}

// ParseMETAR decodes the fields of a raw METAR report it recognizes.
func ParseMETAR(station, raw string) WeatherStats {
	stats := WeatherStats{StationID: station, RawMETAR: raw}

	for _, part := range strings.Fields(raw) {
		if m := windRegex.FindStringSubmatch(part); m != nil {
			if m[1] == "VRB" {
				stats.WindDirection = -1
			} else {
				stats.WindDirection, _ = strconv.Atoi(m[1])
			}
			factor := 0.514444 // knots
			if m[4] == "MPS" {
				factor = 1
			}
			speed, _ := strconv.ParseFloat(m[2], 64)
			stats.WindSpeed = speed * factor
			if m[3] != "" {
				gust, _ := strconv.ParseFloat(m[3], 64)
				stats.WindGust = gust * factor
			}
			continue
		}

		if m := tempRegex.FindStringSubmatch(part); m != nil {
			stats.Temperature = parseMETARTemp(m[1])
			if m[2] != "" {
				stats.DewPoint = parseMETARTemp(m[2])
				stats.Humidity = calculateHumidity(stats.Temperature, stats.DewPoint)
			}
			continue
		}

		if m := altRegex.FindStringSubmatch(part); m != nil {
			inHg, _ := strconv.ParseFloat(m[1], 64)
			stats.Pressure = inHg / 100 * 33.8639
			continue
		}
		if m := qnhRegex.FindStringSubmatch(part); m != nil {
			stats.Pressure, _ = strconv.ParseFloat(m[1], 64)
			continue
		}

		if m := visRegex.FindStringSubmatch(part); m != nil {
			stats.Visibility, _ = strconv.ParseFloat(m[1], 64)
			continue
		}
		if part == "M1/4SM" {
			stats.Visibility = 0.25
			continue
		}
		if m := visFracRegex.FindStringSubmatch(part); m != nil {
			num, _ := strconv.ParseFloat(m[1], 64)
			denom, _ := strconv.ParseFloat(m[2], 64)
			if denom > 0 {
				stats.Visibility = num / denom
			}
			continue
		}

		if m := cloudRegex.FindStringSubmatch(part); m != nil {
			// Only the lowest layer is reported.
			if stats.Cloud == "" {
				stats.Cloud = cloudCoverage[m[1]]
			}
			continue
		}

		stats.Condition = parseWeatherCondition(part, stats.Condition)
	}

	if stats.Condition == "" {
		stats.Condition = stats.Cloud
	}
	if stats.Condition == "" {
		stats.Condition = "unknown"
	}
	return stats
}

var cloudCoverage = map[string]string{
	"SKC": "clear",
	"CLR": "clear",
	"NSC": "clear",
	"FEW": "few clouds",
	"SCT": "scattered clouds",
	"BKN": "broken clouds",
	"OVC": "overcast",
	"VV":  "obscured",
}

// parseMETARTemp parses a METAR temperature string ("M02" is -2).
func parseMETARTemp(s string) float64 {
	negative := strings.HasPrefix(s, "M")
	temp, _ := strconv.ParseFloat(strings.TrimPrefix(s, "M"), 64)
	if negative {
		return -temp
	}
	return temp
}

// calculateHumidity uses the Magnus-Tetens approximation.
func calculateHumidity(tempC, dewPointC float64) float64 {
	const a, b = 17.27, 237.7
	alpha := (a * dewPointC) / (b + dewPointC)
	beta := (a * tempC) / (b + tempC)
	return min(max(100*math.Exp(alpha-beta), 0), 100)
}

var weatherCodes = []struct {
	code string
	desc string
}{
	// Longer codes first so TSRA is not matched as TS.
	{"VCSH", "showers nearby"},
	{"VCTS", "thunderstorm nearby"},
	{"TSRA", "thunderstorm with rain"},
	{"TS", "thunderstorm"},
	{"SH", "showers"},
	{"RA", "rain"},
	{"SN", "snow"},
	{"DZ", "drizzle"},
	{"FG", "fog"},
	{"BR", "mist"},
	{"HZ", "haze"},
	{"GR", "hail"},
	{"IC", "ice crystals"},
	{"PL", "ice pellets"},
}

// parseWeatherCondition appends the description of a METAR weather code
// to existing.
func parseWeatherCondition(part, existing string) string {
	intensity := ""
	switch {
	case strings.HasPrefix(part, "+"):
		intensity = "heavy "
		part = part[1:]
	case strings.HasPrefix(part, "-"):
		intensity = "light "
		part = part[1:]
	}
	if strings.HasPrefix(part, "FZ") {
		intensity += "freezing "
		part = part[2:]
	}

	for _, c := range weatherCodes {
		if strings.Contains(part, c.code) {
			condition := intensity + c.desc
			if existing != "" && existing != condition {
				return existing + ", " + condition
			}
			return condition
		}
	}
	return existing
}

// CompassDirection converts a wind direction in degrees to one of the 16
// compass points.
func CompassDirection(degrees int) string {
	if degrees < 0 {
		return "VRB"
	}
	directions := []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
		"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}
	return directions[((degrees*100+1125)/2250)%16]
}
