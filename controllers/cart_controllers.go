package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/pricing"
	"github.com/jjdimalanta/mangan-app/services"
	"github.com/jjdimalanta/mangan-app/utils"
)

// CartController owns the server-side cart snapshot, keyed by the browser's
// session token. Every mutation decodes the snapshot, applies the change
// through the pricing package and writes the snapshot back.
type CartController struct {
	DB       *gorm.DB
	Recovery *services.RecoveryService
}

func NewCartController(db *gorm.DB, recovery *services.RecoveryService) *CartController {
	return &CartController{DB: db, Recovery: recovery}
}

type cartPayload struct {
	SessionKey  string             `json:"session_key"`
	WelcomeBack bool               `json:"welcome_back"`
	Lines       []pricing.LineItem `json:"lines"`
	Subtotal    float64            `json:"subtotal"`
	ItemCount   int                `json:"item_count"`
}

func buildCartPayload(sessionKey string, welcomeBack bool, cart *pricing.Cart) cartPayload {
	lines := cart.Lines
	if lines == nil {
		lines = []pricing.LineItem{}
	}
	return cartPayload{
		SessionKey:  sessionKey,
		WelcomeBack: welcomeBack,
		Lines:       lines,
		Subtotal:    cart.Subtotal(),
		ItemCount:   cart.ItemCount(),
	}
}

// GetCart loads the snapshot for page load. A recovery-link visit arrives with
// ?welcome=1 and raises the welcome-back flag; a plain load consumes it so the
// banner shows once.
func (cc *CartController) GetCart(c *gin.Context) {
	sessionKey := c.Param("session_key")
	if !validSessionKey(sessionKey) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid session key"))
		return
	}

	var session models.CartSession
	err := cc.DB.Where("session_key = ?", sessionKey).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondJSON(c, http.StatusOK, "Cart",
			buildCartPayload(sessionKey, c.Query("welcome") == "1", &pricing.Cart{}))
		return
	}
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	cart, err := pricing.DecodeSnapshot(session.Snapshot)
	if err != nil {
		utils.ErrorLogger.Printf("corrupt cart snapshot for session %s: %v", sessionKey, err)
		cart = &pricing.Cart{}
	}

	welcomeBack := session.WelcomeBack
	if c.Query("welcome") == "1" {
		welcomeBack = true
		session.WelcomeBack = true
	} else if session.WelcomeBack {
		// Shown once, then cleared.
		session.WelcomeBack = false
	}
	cc.DB.Save(&session)

	cc.Recovery.MarkSeen(sessionKey)

	utils.RespondJSON(c, http.StatusOK, "Cart", buildCartPayload(sessionKey, welcomeBack, cart))
}

// AddSimpleItem adds one unit of a flavorless product.
func (cc *CartController) AddSimpleItem(c *gin.Context) {
	sessionKey := c.Param("session_key")
	if !validSessionKey(sessionKey) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid session key"))
		return
	}

	var req struct {
		ProductID uint `json:"product_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var product models.Product
	if err := cc.DB.First(&product, req.ProductID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("product not found"))
		return
	}
	if !product.IsActive {
		utils.RespondError(c, http.StatusUnprocessableEntity, errors.New("product is not available"))
		return
	}
	if product.ProductType == models.ProductTypeFlavored {
		utils.RespondError(c, http.StatusBadRequest, errors.New("product requires a flavor selection"))
		return
	}

	session, cart, err := cc.loadSession(sessionKey)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	cart.AddSimple(pricing.SnapshotOf(&product))

	if err := cc.persist(session, cart); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item added", buildCartPayload(sessionKey, false, cart))
}

// AddFlavoredItem validates the flavor selection against the product's rule
// and adds a configured line. Incomplete selections are rejected before they
// can reach the cart.
func (cc *CartController) AddFlavoredItem(c *gin.Context) {
	sessionKey := c.Param("session_key")
	if !validSessionKey(sessionKey) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid session key"))
		return
	}

	var req struct {
		ProductID uint         `json:"product_id" binding:"required"`
		Selection map[uint]int `json:"selection" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var product models.Product
	if err := cc.DB.Preload("FlavorRule").First(&product, req.ProductID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("product not found"))
		return
	}
	if !product.IsActive {
		utils.RespondError(c, http.StatusUnprocessableEntity, errors.New("product is not available"))
		return
	}
	if product.ProductType != models.ProductTypeFlavored {
		utils.RespondError(c, http.StatusBadRequest, errors.New("product does not take flavors"))
		return
	}

	selection := pricing.Selection{}
	var flavorIDs []uint
	for id, qty := range req.Selection {
		selection[id] = qty
		if qty > 0 {
			flavorIDs = append(flavorIDs, id)
		}
	}

	flavors := map[uint]models.Flavor{}
	if len(flavorIDs) > 0 {
		var rows []models.Flavor
		if err := cc.DB.Where("id IN ?", flavorIDs).Find(&rows).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		for _, f := range rows {
			if f.IsActive {
				flavors[f.ID] = f
			}
		}
		for _, id := range flavorIDs {
			if _, ok := flavors[id]; !ok {
				utils.RespondError(c, http.StatusUnprocessableEntity, errors.New("a selected flavor is not available"))
				return
			}
		}
	}

	rule := pricing.Resolve(&product)
	lineFlavors, err := pricing.ComposeFlavored(rule, selection, flavors)
	if err != nil {
		utils.RespondError(c, http.StatusUnprocessableEntity, err)
		return
	}

	session, cart, err := cc.loadSession(sessionKey)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	cart.AddFlavored(pricing.SnapshotOf(&product), lineFlavors)

	if err := cc.persist(session, cart); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item added", buildCartPayload(sessionKey, false, cart))
}

// UpdateItemQuantity applies a +1/-1 stepper delta. A line reaching zero is
// removed.
func (cc *CartController) UpdateItemQuantity(c *gin.Context) {
	sessionKey := c.Param("session_key")
	if !validSessionKey(sessionKey) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid session key"))
		return
	}
	lineID := c.Param("line_id")

	var req struct {
		Delta int `json:"delta" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, cart, err := cc.loadSession(sessionKey)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if !cart.UpdateQuantity(lineID, req.Delta) {
		utils.RespondError(c, http.StatusNotFound, errors.New("cart line not found"))
		return
	}

	if err := cc.persist(session, cart); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cart updated", buildCartPayload(sessionKey, false, cart))
}

// RemoveItem deletes a line outright.
func (cc *CartController) RemoveItem(c *gin.Context) {
	sessionKey := c.Param("session_key")
	if !validSessionKey(sessionKey) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid session key"))
		return
	}
	lineID := c.Param("line_id")

	session, cart, err := cc.loadSession(sessionKey)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if !cart.Remove(lineID) {
		utils.RespondError(c, http.StatusNotFound, errors.New("cart line not found"))
		return
	}

	if err := cc.persist(session, cart); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item removed", buildCartPayload(sessionKey, false, cart))
}

// ClearCart empties the cart and drops the stored session row.
func (cc *CartController) ClearCart(c *gin.Context) {
	sessionKey := c.Param("session_key")
	if !validSessionKey(sessionKey) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid session key"))
		return
	}

	if err := cc.DB.Where("session_key = ?", sessionKey).Delete(&models.CartSession{}).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cart cleared", buildCartPayload(sessionKey, false, &pricing.Cart{}))
}

// CaptureContact saves checkout-form contact fields as they are typed, so an
// abandoned session is reachable for recovery reminders.
func (cc *CartController) CaptureContact(c *gin.Context) {
	sessionKey := c.Param("session_key")
	if !validSessionKey(sessionKey) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid session key"))
		return
	}

	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Phone == "" && req.Email == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("phone or email is required"))
		return
	}

	var session models.CartSession
	if err := cc.DB.Where("session_key = ?", sessionKey).First(&session).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("cart session not found"))
		return
	}
	cart, err := pricing.DecodeSnapshot(session.Snapshot)
	if err != nil {
		cart = &pricing.Cart{}
	}
	if len(cart.Lines) == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("cart is empty"))
		return
	}

	checkout, err := cc.Recovery.CaptureContact(
		sessionKey, req.Name, req.Phone, req.Email, session.Snapshot, cart.Subtotal())
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Contact captured", gin.H{
		"checkout_id": checkout.ID,
		"status":      checkout.Status,
	})
}

func (cc *CartController) loadSession(sessionKey string) (*models.CartSession, *pricing.Cart, error) {
	if !validSessionKey(sessionKey) {
		return nil, nil, errors.New("invalid session key")
	}

	var session models.CartSession
	err := cc.DB.Where("session_key = ?", sessionKey).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		session = models.CartSession{SessionKey: sessionKey, Snapshot: ""}
	} else if err != nil {
		return nil, nil, err
	}

	cart, err := pricing.DecodeSnapshot(session.Snapshot)
	if err != nil {
		utils.ErrorLogger.Printf("corrupt cart snapshot for session %s: %v", sessionKey, err)
		cart = &pricing.Cart{}
	}
	return &session, cart, nil
}

func (cc *CartController) persist(session *models.CartSession, cart *pricing.Cart) error {
	snapshot, err := pricing.EncodeSnapshot(cart)
	if err != nil {
		return err
	}
	session.Snapshot = snapshot

	if err := cc.DB.Save(session).Error; err != nil {
		return err
	}
	cc.Recovery.MarkSeen(session.SessionKey)
	return nil
}

func validSessionKey(key string) bool {
	return key != "" && len(key) <= 64
}
