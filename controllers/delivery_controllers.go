package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jjdimalanta/mangan-app/services"
	"github.com/jjdimalanta/mangan-app/utils"
)

type DeliveryController struct {
	Geocoder *services.GeocodeService
}

func NewDeliveryController(geocoder *services.GeocodeService) *DeliveryController {
	return &DeliveryController{Geocoder: geocoder}
}

// QuoteFee estimates the delivery fee for an address. The city gate runs
// before any geocoding call, so out-of-area requests fail fast and cheap.
func (dc *DeliveryController) QuoteFee(c *gin.Context) {
	var req struct {
		City     string `json:"city" binding:"required"`
		Barangay string `json:"barangay" binding:"required"`
		Street   string `json:"street" binding:"required"`
		Landmark string `json:"landmark"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	quote, err := dc.Geocoder.EstimateFee(services.QuoteRequest{
		City:     req.City,
		Barangay: req.Barangay,
		Street:   req.Street,
		Landmark: req.Landmark,
	})
	if errors.Is(err, services.ErrCityNotServiceable) {
		utils.RespondFieldErrors(c, http.StatusUnprocessableEntity, "Address not serviceable",
			map[string]string{"city": err.Error()})
		return
	}
	if errors.Is(err, services.ErrAddressNotFound) {
		utils.RespondFieldErrors(c, http.StatusUnprocessableEntity, "Address not found",
			map[string]string{"street": "we could not locate this address, try adding a landmark"})
		return
	}
	if err != nil {
		utils.RespondError(c, http.StatusBadGateway, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Delivery fee estimated", quote)
}
