package services

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jjdimalanta/mangan-app/config"
)

func testDeliveryConfig() config.DeliveryConfig {
	return config.DeliveryConfig{
		StoreLat: 14.9712,
		StoreLng: 120.5297,
		BaseFee:  49,
		PerKmFee: 12,
		Cities:   []string{"Floridablanca", "Lubao", "Guagua", "Porac"},
	}
}

func TestGeocodeService_Forward(t *testing.T) {
	tests := []struct {
		name           string
		mockResponse   string
		mockStatusCode int
		wantLat        float64
		wantLng        float64
		wantErr        bool
	}{
		{
			name:           "single match",
			mockResponse:   `[{"lat":"14.9420","lon":"120.5580","display_name":"Lubao, Pampanga, Philippines"}]`,
			mockStatusCode: http.StatusOK,
			wantLat:        14.9420,
			wantLng:        120.5580,
			wantErr:        false,
		},
		{
			name:           "empty result set",
			mockResponse:   `[]`,
			mockStatusCode: http.StatusOK,
			wantErr:        true,
		},
		{
			name:           "provider not found",
			mockResponse:   `{"error":"Unable to geocode"}`,
			mockStatusCode: http.StatusNotFound,
			wantErr:        true,
		},
		{
			name:           "provider error",
			mockResponse:   `{"error":"Invalid key"}`,
			mockStatusCode: http.StatusUnauthorized,
			wantErr:        true,
		},
		{
			name:           "malformed coordinates",
			mockResponse:   `[{"lat":"not-a-number","lon":"120.5580","display_name":"x"}]`,
			mockStatusCode: http.StatusOK,
			wantErr:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.mockStatusCode)
				w.Write([]byte(tt.mockResponse))
			}))
			defer server.Close()

			gs := NewGeocodeService(&GeocodeConfig{
				BaseURL:     server.URL,
				APIKey:      "test-key",
				CountryCode: "ph",
			}, testDeliveryConfig())

			lat, lng, _, err := gs.Forward("Lubao, Pampanga, Philippines")
			if (err != nil) != tt.wantErr {
				t.Errorf("Forward() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if lat != tt.wantLat || lng != tt.wantLng {
					t.Errorf("Forward() = (%v, %v), want (%v, %v)", lat, lng, tt.wantLat, tt.wantLng)
				}
			}
		})
	}
}

func TestGeocodeService_EstimateFeeRejectsUnservedCityWithoutAPICall(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Write([]byte(`[{"lat":"15.0","lon":"120.6","display_name":"x"}]`))
	}))
	defer server.Close()

	gs := NewGeocodeService(&GeocodeConfig{
		BaseURL:     server.URL,
		APIKey:      "test-key",
		CountryCode: "ph",
	}, testDeliveryConfig())

	_, err := gs.EstimateFee(QuoteRequest{City: "Angeles City", Barangay: "Balibago", Street: "MacArthur Hwy"})
	if !errors.Is(err, ErrCityNotServiceable) {
		t.Errorf("EstimateFee() error = %v, want ErrCityNotServiceable", err)
	}
	if got := atomic.LoadInt64(&calls); got != 0 {
		t.Errorf("geocoder was called %d times for an unserved city, want 0", got)
	}
}

func TestGeocodeService_EstimateFeeCityMatchIsCaseInsensitive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat":"14.9420","lon":"120.5580","display_name":"Lubao, Pampanga"}]`))
	}))
	defer server.Close()

	gs := NewGeocodeService(&GeocodeConfig{
		BaseURL:     server.URL,
		APIKey:      "test-key",
		CountryCode: "ph",
	}, testDeliveryConfig())

	quote, err := gs.EstimateFee(QuoteRequest{City: "lubao", Barangay: "San Nicolas 1st", Street: "Rizal St"})
	if err != nil {
		t.Fatalf("EstimateFee() error = %v", err)
	}
	if quote.Fee <= testDeliveryConfig().BaseFee {
		t.Errorf("EstimateFee() fee = %v, want above the base fee", quote.Fee)
	}
}

func TestGeocodeService_EstimateFeeFormula(t *testing.T) {
	// Geocoder pinned to a point so distance is deterministic.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat":"14.9420","lon":"120.5580","display_name":"Lubao, Pampanga"}]`))
	}))
	defer server.Close()

	delivery := testDeliveryConfig()
	gs := NewGeocodeService(&GeocodeConfig{
		BaseURL:     server.URL,
		APIKey:      "test-key",
		CountryCode: "ph",
	}, delivery)

	quote, err := gs.EstimateFee(QuoteRequest{City: "Lubao", Barangay: "San Nicolas 1st", Street: "Rizal St"})
	if err != nil {
		t.Fatalf("EstimateFee() error = %v", err)
	}

	distance := haversineKm(delivery.StoreLat, delivery.StoreLng, 14.9420, 120.5580)
	wantFee := delivery.BaseFee + delivery.PerKmFee*distance
	if math.Abs(quote.Fee-math.Round(wantFee*100)/100) > 1e-9 {
		t.Errorf("EstimateFee() fee = %v, want %v", quote.Fee, wantFee)
	}
	if quote.DistanceKm <= 0 {
		t.Errorf("EstimateFee() distance = %v, want positive", quote.DistanceKm)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Floridablanca poblacion to Guagua poblacion is roughly 10-13 km.
	d := haversineKm(14.9712, 120.5297, 14.9667, 120.6333)
	if d < 9 || d > 14 {
		t.Errorf("haversineKm() = %v km, want between 9 and 14", d)
	}

	if z := haversineKm(14.9712, 120.5297, 14.9712, 120.5297); z != 0 {
		t.Errorf("haversineKm() same point = %v, want 0", z)
	}
}
