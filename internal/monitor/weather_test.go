package monitor

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseMETAR(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantTemp       float64
		wantDewPoint   float64
		wantWindSpeed  float64
		wantWindDir    int
		wantWindGust   float64
		wantVisibility float64
		wantPressure   float64
		wantCloud      string
		wantCondition  string
	}{
		{
			name:           "basic report",
			raw:            "KJFK 151756Z 31012KT 10SM FEW045 SCT250 22/06 A3012",
			wantTemp:       22,
			wantDewPoint:   6,
			wantWindSpeed:  12 * 0.514444,
			wantWindDir:    310,
			wantVisibility: 10,
			wantPressure:   30.12 * 33.8639,
			wantCloud:      "few clouds",
			wantCondition:  "few clouds",
		},
		{
			name:           "gusts",
			raw:            "KORD 151751Z 27018G28KT 10SM SCT050 BKN250 18/08 A2995",
			wantTemp:       18,
			wantDewPoint:   8,
			wantWindSpeed:  18 * 0.514444,
			wantWindDir:    270,
			wantWindGust:   28 * 0.514444,
			wantVisibility: 10,
			wantPressure:   29.95 * 33.8639,
			wantCloud:      "scattered clouds",
			wantCondition:  "scattered clouds",
		},
		{
			name:           "light rain",
			raw:            "KSFO 151756Z 29008KT 8SM -RA FEW015 BKN025 OVC040 14/11 A3002",
			wantTemp:       14,
			wantDewPoint:   11,
			wantWindSpeed:  8 * 0.514444,
			wantWindDir:    290,
			wantVisibility: 8,
			wantPressure:   30.02 * 33.8639,
			wantCloud:      "few clouds",
			wantCondition:  "light rain",
		},
		{
			name:          "negative temperatures, QNH and m/s wind",
			raw:           "EFHK 151750Z VRB03MPS 9999 -FZDZ OVC008 M05/M07 Q1021",
			wantTemp:      -5,
			wantDewPoint:  -7,
			wantWindSpeed: 3,
			wantWindDir:   -1,
			wantPressure:  1021,
			wantCloud:     "overcast",
			wantCondition: "light freezing drizzle",
		},
		{
			name:           "fractional visibility",
			raw:            "KBOS 151754Z 00000KT 1/2SM +SN BR VV005 M01/M02 A2990",
			wantTemp:       -1,
			wantDewPoint:   -2,
			wantVisibility: 0.5,
			wantPressure:   29.90 * 33.8639,
			wantCloud:      "obscured",
			wantCondition:  "heavy snow, mist",
		},
	}

	approx := func(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ParseMETAR("TEST", tt.raw)
			if s.Temperature != tt.wantTemp {
				t.Errorf("Temperature = %v, want %v", s.Temperature, tt.wantTemp)
			}
			if s.DewPoint != tt.wantDewPoint {
				t.Errorf("DewPoint = %v, want %v", s.DewPoint, tt.wantDewPoint)
			}
			if !approx(s.WindSpeed, tt.wantWindSpeed) {
				t.Errorf("WindSpeed = %v, want %v", s.WindSpeed, tt.wantWindSpeed)
			}
			if s.WindDirection != tt.wantWindDir {
				t.Errorf("WindDirection = %v, want %v", s.WindDirection, tt.wantWindDir)
			}
			if !approx(s.WindGust, tt.wantWindGust) {
				t.Errorf("WindGust = %v, want %v", s.WindGust, tt.wantWindGust)
			}
			if s.Visibility != tt.wantVisibility {
				t.Errorf("Visibility = %v, want %v", s.Visibility, tt.wantVisibility)
			}
			if !approx(s.Pressure, tt.wantPressure) {
				t.Errorf("Pressure = %v, want %v", s.Pressure, tt.wantPressure)
			}
			if s.Cloud != tt.wantCloud {
				t.Errorf("Cloud = %q, want %q", s.Cloud, tt.wantCloud)
			}
			if s.Condition != tt.wantCondition {
				t.Errorf("Condition = %q, want %q", s.Condition, tt.wantCondition)
			}
		})
	}
}

func newTestWeatherClient(url string) (*WeatherClient, *time.Time) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewWeatherClient()
	c.URL = url + "?ids=%s"
	c.now = func() time.Time { return now }
	return c, &now
}

func TestWeatherClientCaching(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if got := r.URL.Query().Get("ids"); got != "KJFK" {
			t.Errorf("ids = %q, want KJFK", got)
		}
		_, _ = w.Write([]byte("KJFK 151756Z 31012KT 10SM FEW045 22/06 A3012\nKJFK 151656Z 31010KT 10SM FEW045 21/06 A3012\n"))
	}))
	defer server.Close()

	c, now := newTestWeatherClient(server.URL)
	ctx := context.Background()

	stats, err := c.Fetch(ctx, " kjfk ")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if stats.Temperature != 22 {
		t.Errorf("Temperature = %v, want 22 from the newest report", stats.Temperature)
	}
	if !stats.LastUpdate.Equal(*now) {
		t.Errorf("LastUpdate = %v, want %v", stats.LastUpdate, *now)
	}

	if _, err := c.Fetch(ctx, "KJFK"); err != nil {
		t.Fatalf("cached Fetch() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d after cache hit, want 1", calls.Load())
	}

	*now = now.Add(11 * time.Minute)
	fail.Store(true)
	stale, err := c.Fetch(ctx, "KJFK")
	if err == nil {
		t.Fatal("Fetch() with failing server succeeded")
	}
	if stale.Temperature != 22 {
		t.Errorf("stale Temperature = %v, want 22", stale.Temperature)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d after expiry, want 2", calls.Load())
	}
}

func TestWeatherClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("No data found"))
	}))
	defer server.Close()

	c, _ := newTestWeatherClient(server.URL)
	_, err := c.Fetch(context.Background(), "XXXX")
	if err == nil {
		t.Error("Fetch() for unknown station succeeded")
	}
	if !IsComponentError(err, ErrorSourceWeather) {
		t.Errorf("Fetch() error = %v, want weather component error", err)
	}

	if _, err := c.Fetch(context.Background(), ""); err == nil {
		t.Error("Fetch() with empty station succeeded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Fetch(ctx, "KJFK"); !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() with cancelled context error = %v, want context.Canceled", err)
	}
}

func TestCalculateHumidity(t *testing.T) {
	tests := []struct {
		temp, dew float64
		want      float64
	}{
		{20, 20, 100},
		{22, 6, 35.4},
		{30, 10, 29.0},
	}
	for _, tt := range tests {
		got := calculateHumidity(tt.temp, tt.dew)
		if math.Abs(got-tt.want) > 0.1 {
			t.Errorf("calculateHumidity(%v, %v) = %.2f, want %.1f", tt.temp, tt.dew, got, tt.want)
		}
	}
}

func TestCompassDirection(t *testing.T) {
	tests := map[int]string{
		-1:  "VRB",
		0:   "N",
		11:  "N",
		12:  "NNE",
		45:  "NE",
		90:  "E",
		180: "S",
		270: "W",
		349: "N",
		360: "N",
	}
	for deg, want := range tests {
		if got := CompassDirection(deg); got != want {
			t.Errorf("CompassDirection(%d) = %q, want %q", deg, got, want)
		}
	}
}
