package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jjdimalanta/mangan-app/config"
)

// ErrCityNotServiceable is returned before any geocoding happens when the
// customer's city is not on the delivery allow-list.
var ErrCityNotServiceable = errors.New("we do not deliver to this city yet")

// ErrAddressNotFound means the geocoder had no match for the address.
var ErrAddressNotFound = errors.New("address could not be located")

// GeocodeConfig holds the forward-geocoding provider settings.
type GeocodeConfig struct {
	BaseURL     string
	APIKey      string
	CountryCode string
}

// GeocodeService resolves street addresses to coordinates and prices
// delivery from the store.
type GeocodeService struct {
	config     *GeocodeConfig
	delivery   config.DeliveryConfig
	httpClient *http.Client
}

var (
	geocodeService *GeocodeService
	geocodeOnce    sync.Once
)

// GetGeocodeService returns the singleton instance configured from the
// environment.
func GetGeocodeService() *GeocodeService {
	geocodeOnce.Do(func() {
		baseURL := os.Getenv("GEOCODE_BASE_URL")
		if baseURL == "" {
			baseURL = "https://us1.locationiq.com/v1"
		}

		apiKey := os.Getenv("GEOCODE_API_KEY")
		if apiKey == "" {
			fmt.Println("WARNING: GEOCODE_API_KEY is empty, geocoding requests will be rejected by the provider")
		}

		countryCode := os.Getenv("GEOCODE_COUNTRY")
		if countryCode == "" {
			countryCode = "ph"
		}

		geocodeService = NewGeocodeService(&GeocodeConfig{
			BaseURL:     baseURL,
			APIKey:      apiKey,
			CountryCode: countryCode,
		}, config.Delivery())
	})
	return geocodeService
}

// NewGeocodeService creates a service with explicit configuration.
func NewGeocodeService(cfg *GeocodeConfig, delivery config.DeliveryConfig) *GeocodeService {
	return &GeocodeService{
		config:   cfg,
		delivery: delivery,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// QuoteRequest is the address a customer wants delivery to.
type QuoteRequest struct {
	City     string
	Barangay string
	Street   string
	Landmark string
}

// DeliveryQuote is the priced result for a serviceable address.
type DeliveryQuote struct {
	DistanceKm     float64 `json:"distance_km"`
	Fee            float64 `json:"fee"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	MatchedAddress string  `json:"matched_address"`
}

// EstimateFee checks the allow-list, geocodes the address and prices the
// trip. The city gate runs first so unserviceable towns never cost an API
// call.
func (gs *GeocodeService) EstimateFee(req QuoteRequest) (*DeliveryQuote, error) {
	if !gs.delivery.ServesCity(req.City) {
		return nil, ErrCityNotServiceable
	}

	query := buildAddressQuery(req)
	lat, lng, display, err := gs.Forward(query)
	if err != nil {
		return nil, err
	}

	distance := haversineKm(gs.delivery.StoreLat, gs.delivery.StoreLng, lat, lng)
	fee := gs.delivery.BaseFee + gs.delivery.PerKmFee*distance

	return &DeliveryQuote{
		DistanceKm:     round2(distance),
		Fee:            round2(fee),
		Latitude:       lat,
		Longitude:      lng,
		MatchedAddress: display,
	}, nil
}

// Forward geocodes a free-form address into coordinates.
func (gs *GeocodeService) Forward(address string) (float64, float64, string, error) {
	endpoint := fmt.Sprintf("%s/search?key=%s&q=%s&format=json&limit=1&countrycodes=%s",
		strings.TrimRight(gs.config.BaseURL, "/"),
		url.QueryEscape(gs.config.APIKey),
		url.QueryEscape(address),
		url.QueryEscape(gs.config.CountryCode),
	)

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return 0, 0, "", fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := gs.httpClient.Do(req)
	if err != nil {
		return 0, 0, "", fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, "", fmt.Errorf("error reading response: %v", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return 0, 0, "", ErrAddressNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return 0, 0, "", fmt.Errorf("geocoder API error: %s", string(body))
	}

	var results []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return 0, 0, "", fmt.Errorf("error unmarshaling response: %v", err)
	}
	if len(results) == 0 {
		return 0, 0, "", ErrAddressNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, "", fmt.Errorf("invalid latitude in response: %v", err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, "", fmt.Errorf("invalid longitude in response: %v", err)
	}

	return lat, lng, results[0].DisplayName, nil
}

func buildAddressQuery(req QuoteRequest) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{req.Street, req.Barangay, req.City} {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	parts = append(parts, "Pampanga, Philippines")
	return strings.Join(parts, ", ")
}

// haversineKm is the great-circle distance between two coordinates.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0

	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
