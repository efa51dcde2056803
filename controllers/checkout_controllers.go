package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/live"
	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/pricing"
	"github.com/jjdimalanta/mangan-app/services"
	"github.com/jjdimalanta/mangan-app/utils"
)

var proofExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

type CheckoutController struct {
	DB       *gorm.DB
	Checkout *services.CheckoutService
}

func NewCheckoutController(db *gorm.DB, checkout *services.CheckoutService) *CheckoutController {
	return &CheckoutController{DB: db, Checkout: checkout}
}

// Submit turns the stored cart into an order. The request is multipart so a
// GCash/bank-transfer screenshot can ride along; attaching one moves the order
// straight to for_verification.
func (cc *CheckoutController) Submit(c *gin.Context) {
	c.Request.ParseMultipartForm(10 << 20)

	sessionKey := c.PostForm("session_key")
	if !validSessionKey(sessionKey) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid session key"))
		return
	}

	fields := map[string]string{}
	name := strings.TrimSpace(c.PostForm("name"))
	phone := strings.TrimSpace(c.PostForm("phone"))
	if name == "" {
		fields["name"] = "name is required"
	}
	if phone == "" {
		fields["phone"] = "phone is required"
	}
	if len(fields) > 0 {
		utils.RespondFieldErrors(c, http.StatusUnprocessableEntity, "Missing checkout fields", fields)
		return
	}

	var session models.CartSession
	if err := cc.DB.Where("session_key = ?", sessionKey).First(&session).Error; err != nil {
		utils.RespondError(c, http.StatusBadRequest, services.ErrEmptyCart)
		return
	}
	cart, err := pricing.DecodeSnapshot(session.Snapshot)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("cart snapshot is unreadable"))
		return
	}

	proofURL, err := cc.savePaymentProof(c)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := cc.Checkout.Submit(services.CheckoutInput{
		SessionKey:    sessionKey,
		Name:          name,
		Phone:         phone,
		Email:         strings.TrimSpace(c.PostForm("email")),
		OrderType:     c.PostForm("order_type"),
		PaymentMethod: c.PostForm("payment_method"),
		City:          strings.TrimSpace(c.PostForm("city")),
		Barangay:      strings.TrimSpace(c.PostForm("barangay")),
		Street:        strings.TrimSpace(c.PostForm("street")),
		Landmark:      strings.TrimSpace(c.PostForm("landmark")),
		Notes:         c.PostForm("notes"),
		Cart:          cart,
		ProofImageURL: proofURL,
	})
	if err != nil {
		if proofURL != "" {
			removeUploadedFile(proofURL)
		}
		cc.respondCheckoutError(c, err)
		return
	}

	c.Set("order_reference", order.Reference)
	utils.InfoLogger.Printf("Checkout complete: %s (%s, %s)",
		order.Reference, order.OrderType, utils.FormatCurrencyPHP(order.Total))

	utils.RespondJSON(c, http.StatusCreated, "Order placed. Salamat po!", order)
}

// AttachProof accepts a proof upload for an order placed without one, or a
// replacement before review. The tracking page drives this with the order
// reference.
func (cc *CheckoutController) AttachProof(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("query parameter 'ref' is required"))
		return
	}

	var order models.Order
	if err := cc.DB.Where("reference = ?", ref).First(&order).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("order not found"))
		return
	}
	c.Set("order_reference", order.Reference)

	if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusForVerification {
		utils.RespondError(c, http.StatusUnprocessableEntity,
			fmt.Errorf("order is %s, proof can no longer be attached", order.Status))
		return
	}
	if order.PaymentMethod == models.PaymentMethodCash {
		utils.RespondError(c, http.StatusBadRequest, errors.New("cash orders do not take payment proof"))
		return
	}

	proofURL, err := cc.savePaymentProof(c)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if proofURL == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("payment_proof file is required"))
		return
	}

	proof := models.PaymentProof{
		OrderID:  order.ID,
		ImageURL: proofURL,
		Status:   models.ProofStatusPending,
	}

	err = cc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&proof).Error; err != nil {
			return err
		}
		// Earlier uploads that were never reviewed are superseded.
		if err := tx.Model(&models.PaymentProof{}).
			Where("order_id = ? AND id <> ? AND status = ?", order.ID, proof.ID, models.ProofStatusPending).
			Update("status", models.ProofStatusRejected).Error; err != nil {
			return err
		}
		if order.Status == models.OrderStatusPending {
			order.Status = models.OrderStatusForVerification
			return tx.Save(&order).Error
		}
		return nil
	})
	if err != nil {
		removeUploadedFile(proofURL)
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	live.BroadcastProofSubmitted(proof, order)

	utils.RespondJSON(c, http.StatusCreated, "Payment proof received", gin.H{
		"order_reference": order.Reference,
		"order_status":    order.Status,
		"proof":           proof,
	})
}

func (cc *CheckoutController) respondCheckoutError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrInvalidOrderType),
		errors.Is(err, services.ErrInvalidPayment):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.Is(err, services.ErrAddressIncomplete):
		utils.RespondFieldErrors(c, http.StatusUnprocessableEntity, "Delivery address is incomplete",
			map[string]string{"city": "required", "barangay": "required", "street": "required"})
	case errors.Is(err, services.ErrCityNotServiceable):
		utils.RespondFieldErrors(c, http.StatusUnprocessableEntity, "Address not serviceable",
			map[string]string{"city": err.Error()})
	case errors.Is(err, services.ErrAddressNotFound):
		utils.RespondFieldErrors(c, http.StatusUnprocessableEntity, "Address not found",
			map[string]string{"street": "we could not locate this address, try adding a landmark"})
	case errors.Is(err, services.ErrProductUnavailable),
		errors.Is(err, services.ErrFlavorUnavailable):
		utils.RespondError(c, http.StatusConflict, err)
	case strings.Contains(err.Error(), "incomplete flavor selection"):
		utils.RespondError(c, http.StatusUnprocessableEntity, err)
	default:
		utils.ErrorLogger.Printf("checkout failed: %v", err)
		utils.RespondError(c, http.StatusInternalServerError, err)
	}
}

// savePaymentProof stores an optional proof screenshot and returns its public
// URL, or "" when no file was sent.
func (cc *CheckoutController) savePaymentProof(c *gin.Context) (string, error) {
	file, err := c.FormFile("payment_proof")
	if err != nil {
		return "", nil
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !proofExtensions[ext] {
		return "", fmt.Errorf("unsupported proof format %s, use jpg/png/webp", ext)
	}

	uploadDir := "public/uploads/payment_proofs"
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return "", errors.New("error creating upload directory")
	}

	filename := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(uploadDir, filename)); err != nil {
		return "", errors.New("error saving payment proof")
	}
	return "/uploads/payment_proofs/" + filename, nil
}
