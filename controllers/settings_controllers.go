package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/services"
	"github.com/jjdimalanta/mangan-app/utils"
)

// publicSettingKeys is the subset the storefront may read without auth.
var publicSettingKeys = []string{
	models.SettingStoreHours,
	models.SettingMenuPdfURL,
	models.SettingReservationSlotMinutes,
	models.SettingReservationCapacity,
}

type SettingController struct {
	DB *gorm.DB
}

func NewSettingController(db *gorm.DB) *SettingController {
	return &SettingController{DB: db}
}

// GetPublicSettings -> storefront bootstrap values (hours, menu PDF link).
func (sc *SettingController) GetPublicSettings(c *gin.Context) {
	var settings []models.Setting
	if err := sc.DB.Where("`key` IN ?", publicSettingKeys).Find(&settings).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	values := gin.H{}
	for _, s := range settings {
		values[s.Key] = s.Value
	}
	utils.RespondJSON(c, http.StatusOK, "Settings", values)
}

// GetAllSettings -> admin view of every key.
func (sc *SettingController) GetAllSettings(c *gin.Context) {
	var settings []models.Setting
	if err := sc.DB.Order("`key` asc").Find(&settings).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All settings", settings)
}

// UpdateSettings upserts a key/value batch. Known keys are validated before
// anything is written; one bad value rejects the whole batch.
func (sc *SettingController) UpdateSettings(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if len(req) == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("no settings provided"))
		return
	}

	for key, value := range req {
		if err := validateSetting(key, value); err != nil {
			utils.RespondFieldErrors(c, http.StatusUnprocessableEntity, "Invalid setting",
				map[string]string{key: err.Error()})
			return
		}
	}

	err := sc.DB.Transaction(func(tx *gorm.DB) error {
		for key, value := range req {
			var setting models.Setting
			err := tx.Where("`key` = ?", key).First(&setting).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if err := tx.Create(&models.Setting{Key: key, Value: value}).Error; err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			if err := tx.Model(&setting).Update("value", value).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Settings updated: %d keys", len(req))
	utils.RespondJSON(c, http.StatusOK, "Settings updated", req)
}

func validateSetting(key, value string) error {
	switch key {
	case models.SettingStoreHours:
		if _, _, err := services.ParseStoreHours(value); err != nil {
			return err
		}
	case models.SettingReservationSlotMinutes, models.SettingReservationCapacity:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive number", key)
		}
	}
	return nil
}
