package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jjdimalanta/mangan-app/live"
	"github.com/jjdimalanta/mangan-app/models"
	"github.com/jjdimalanta/mangan-app/pricing"
	"github.com/jjdimalanta/mangan-app/utils"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidOrderType   = errors.New("invalid order type")
	ErrInvalidPayment     = errors.New("invalid payment method")
	ErrAddressIncomplete  = errors.New("delivery address is incomplete")
	ErrProductUnavailable = errors.New("a product in the cart is no longer available")
	ErrFlavorUnavailable  = errors.New("a flavor in the cart is no longer available")
)

// CheckoutService turns a priced cart into a persisted order. Everything the
// storefront computed is recomputed here from the database so a stale or
// tampered snapshot can never set its own prices.
type CheckoutService struct {
	DB       *gorm.DB
	Geocoder *GeocodeService
	Recovery *RecoveryService
	Notifier *Notifier
}

func NewCheckoutService(db *gorm.DB, geocoder *GeocodeService, recovery *RecoveryService, notifier *Notifier) *CheckoutService {
	return &CheckoutService{
		DB:       db,
		Geocoder: geocoder,
		Recovery: recovery,
		Notifier: notifier,
	}
}

// CheckoutInput is a submitted checkout form plus the cart to price.
type CheckoutInput struct {
	SessionKey    string
	Name          string
	Phone         string
	Email         string
	OrderType     string
	PaymentMethod string
	City          string
	Barangay      string
	Street        string
	Landmark      string
	Notes         string
	Cart          *pricing.Cart
	ProofImageURL string
}

// Submit validates, re-prices and stores the order in one transaction.
// Uploaded proof moves the order straight to for_verification; everything
// else starts at pending.
func (cs *CheckoutService) Submit(input CheckoutInput) (*models.Order, error) {
	if input.Cart == nil || len(input.Cart.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	switch input.OrderType {
	case models.OrderTypeDineIn, models.OrderTypePickup, models.OrderTypeDelivery:
	default:
		return nil, ErrInvalidOrderType
	}

	switch input.PaymentMethod {
	case models.PaymentMethodCash, models.PaymentMethodGCash, models.PaymentMethodBankTransfer:
	default:
		return nil, ErrInvalidPayment
	}

	items, subtotal, err := cs.repriceCart(input.Cart)
	if err != nil {
		return nil, err
	}

	var quote *DeliveryQuote
	if input.OrderType == models.OrderTypeDelivery {
		if input.City == "" || input.Barangay == "" || input.Street == "" {
			return nil, ErrAddressIncomplete
		}
		quote, err = cs.Geocoder.EstimateFee(QuoteRequest{
			City:     input.City,
			Barangay: input.Barangay,
			Street:   input.Street,
			Landmark: input.Landmark,
		})
		if err != nil {
			return nil, err
		}
	}

	status := models.OrderStatusPending
	if input.ProofImageURL != "" && input.PaymentMethod != models.PaymentMethodCash {
		status = models.OrderStatusForVerification
	}

	now := time.Now()
	var order models.Order

	err = cs.DB.Transaction(func(tx *gorm.DB) error {
		customer, err := upsertCustomer(tx, input.Name, input.Phone, input.Email)
		if err != nil {
			return err
		}

		order = models.Order{
			CustomerID:    customer.ID,
			OrderType:     input.OrderType,
			Status:        status,
			PaymentMethod: input.PaymentMethod,
			Subtotal:      subtotal,
			Total:         subtotal,
			City:          input.City,
			Barangay:      input.Barangay,
			Street:        input.Street,
			Landmark:      input.Landmark,
			Notes:         input.Notes,
		}
		if quote != nil {
			order.DeliveryFee = quote.Fee
			order.Total = subtotal + quote.Fee
			order.DistanceKm = quote.DistanceKm
			order.Latitude = quote.Latitude
			order.Longitude = quote.Longitude
			order.GeocodedAddr = quote.MatchedAddress
		}

		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		order.Reference = models.MakeOrderReference(now, order.ID)
		if err := tx.Model(&order).Update("reference", order.Reference).Error; err != nil {
			return fmt.Errorf("failed to set order reference: %w", err)
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.Create(&items[i]).Error; err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}

		if input.ProofImageURL != "" {
			proof := models.PaymentProof{
				OrderID:  order.ID,
				ImageURL: input.ProofImageURL,
				Status:   models.ProofStatusPending,
			}
			if err := tx.Create(&proof).Error; err != nil {
				return fmt.Errorf("failed to store payment proof: %w", err)
			}
		}

		if input.SessionKey != "" {
			if err := tx.Where("session_key = ?", input.SessionKey).
				Delete(&models.CartSession{}).Error; err != nil {
				return fmt.Errorf("failed to clear cart session: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if cs.Recovery != nil && input.SessionKey != "" {
		if _, err := cs.Recovery.MarkRecovered(input.SessionKey, order.ID); err != nil {
			utils.ErrorLogger.Printf("Error marking checkout recovered for %s: %v", input.SessionKey, err)
		}
	}

	var full models.Order
	if err := cs.DB.Preload("Customer").Preload("OrderItems.Flavors").First(&full, order.ID).Error; err != nil {
		return nil, err
	}

	live.BroadcastOrderCreated(full)
	if input.ProofImageURL != "" {
		var proof models.PaymentProof
		if err := cs.DB.Where("order_id = ?", full.ID).First(&proof).Error; err == nil {
			live.BroadcastProofSubmitted(proof, full)
		}
	}

	cs.sendConfirmation(&full, input.Email)

	return &full, nil
}

// repriceCart rebuilds every line from the database: current prices, current
// rules, current flavor premiums. The snapshot's totals are ignored.
func (cs *CheckoutService) repriceCart(cart *pricing.Cart) ([]models.OrderItem, float64, error) {
	items := make([]models.OrderItem, 0, len(cart.Lines))
	subtotal := 0.0

	for _, line := range cart.Lines {
		if line.Quantity <= 0 {
			continue
		}

		var product models.Product
		err := cs.DB.Preload("FlavorRule").First(&product, line.Product.ProductID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("%w: product %d", ErrProductUnavailable, line.Product.ProductID)
		}
		if err != nil {
			return nil, 0, err
		}
		if !product.IsActive {
			return nil, 0, fmt.Errorf("%w: %s", ErrProductUnavailable, product.Name)
		}

		item := models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    line.Quantity,
		}

		surcharge := 0.0
		if len(line.Flavors) > 0 {
			rule := pricing.Resolve(&product)

			selection := pricing.Selection{}
			ids := make([]uint, 0, len(line.Flavors))
			for _, lf := range line.Flavors {
				selection[lf.FlavorID] = lf.Quantity
				ids = append(ids, lf.FlavorID)
			}

			if err := rule.Validate(selection); err != nil {
				return nil, 0, fmt.Errorf("invalid flavor selection for %s: %w", product.Name, err)
			}
			if !rule.IsComplete(selection) {
				return nil, 0, fmt.Errorf("incomplete flavor selection for %s", product.Name)
			}

			var flavors []models.Flavor
			if err := cs.DB.Where("id IN ?", ids).Find(&flavors).Error; err != nil {
				return nil, 0, err
			}
			flavorsByID := make(map[uint]models.Flavor, len(flavors))
			for _, f := range flavors {
				if !f.IsActive {
					return nil, 0, fmt.Errorf("%w: %s", ErrFlavorUnavailable, f.Name)
				}
				flavorsByID[f.ID] = f
			}
			if len(flavorsByID) != len(ids) {
				return nil, 0, ErrFlavorUnavailable
			}

			for _, contrib := range pricing.FlavorContributions(rule, selection, flavorsByID) {
				surcharge += contrib.Surcharge
				item.Flavors = append(item.Flavors, models.OrderItemFlavor{
					FlavorID:   contrib.FlavorID,
					FlavorName: contrib.Name,
					Quantity:   contrib.Quantity,
					Surcharge:  contrib.Surcharge,
				})
			}
		}

		item.LineTotal = float64(item.Quantity) * (item.UnitPrice + surcharge)
		subtotal += item.LineTotal
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, 0, ErrEmptyCart
	}
	return items, subtotal, nil
}

func upsertCustomer(tx *gorm.DB, name, phone, email string) (*models.Customer, error) {
	var customer models.Customer
	err := tx.Where("phone = ?", phone).First(&customer).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		customer = models.Customer{Name: name, Phone: phone}
		if email != "" {
			customer.Email = &email
		}
		if err := tx.Create(&customer).Error; err != nil {
			return nil, fmt.Errorf("failed to create customer: %w", err)
		}
		return &customer, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"name": name}
	if email != "" {
		updates["email"] = email
	}
	if err := tx.Model(&customer).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}
	return &customer, nil
}

func (cs *CheckoutService) sendConfirmation(order *models.Order, email string) {
	if cs.Notifier == nil {
		return
	}

	body := fmt.Sprintf("Salamat po! Your order %s has been received. Total: %s. We will text you as it moves along.",
		order.Reference, utils.FormatCurrencyPHP(order.Total))
	if order.Status == models.OrderStatusForVerification {
		body = fmt.Sprintf("Salamat po! Your order %s is received and your payment proof is being verified. Total: %s.",
			order.Reference, utils.FormatCurrencyPHP(order.Total))
	}

	if order.Customer.Phone != "" {
		if err := cs.Notifier.Notify(NotifyJob{
			Channel:   ChannelSMS,
			Recipient: order.Customer.Phone,
			Body:      body,
		}); err != nil {
			utils.ErrorLogger.Printf("Error sending order confirmation SMS for %s: %v", order.Reference, err)
		}
	}
	if email != "" {
		if err := cs.Notifier.Notify(NotifyJob{
			Channel:   ChannelEmail,
			Recipient: email,
			Subject:   fmt.Sprintf("Order %s received", order.Reference),
			Body:      body,
		}); err != nil {
			utils.ErrorLogger.Printf("Error sending order confirmation email for %s: %v", order.Reference, err)
		}
	}
}
