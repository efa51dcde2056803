package live

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jjdimalanta/mangan-app/models"
)

// Event types
const (
	EventOrderCreated      = "order_created"
	EventOrderStatus       = "order_status"
	EventProofSubmitted    = "payment_proof_submitted"
	EventProofReviewed     = "payment_proof_reviewed"
	EventDriverAssigned    = "driver_assigned"
	EventReservationUpdate = "reservation_update"
	EventCheckoutAbandoned = "checkout_abandoned"
	EventCheckoutRecovered = "checkout_recovered"
	EventStaffNotif        = "staff_notification"
	EventDashboardUpdate   = "dashboard_update"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub tracks every connected dashboard (admin, staff, driver) by role.
type Hub struct {
	clients map[*websocket.Conn]string // conn -> role
	mutex   sync.Mutex
}

var hub = Hub{
	clients: make(map[*websocket.Conn]string),
}

// RegisterClient adds a connection under its role.
func RegisterClient(conn *websocket.Conn, role string) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.clients[conn] = role
}

// UnregisterClient drops and closes a connection.
func UnregisterClient(conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.clients, conn)
	conn.Close()
}

// BroadcastOrderCreated announces a fresh order to staff and admin screens.
func BroadcastOrderCreated(order models.Order) {
	broadcastTo([]string{models.RoleAdmin, models.RoleStaff}, Message{
		Event: EventOrderCreated,
		Data:  order,
	})
}

// BroadcastOrderStatus pushes a status transition to every screen. Drivers
// watch this for waiting_for_rider orders.
func BroadcastOrderStatus(order models.Order) {
	broadcast(Message{
		Event: EventOrderStatus,
		Data: map[string]interface{}{
			"order_id":  order.ID,
			"reference": order.Reference,
			"status":    order.Status,
			"order":     order,
		},
	})
}

// BroadcastProofSubmitted tells admin a proof is waiting for review.
func BroadcastProofSubmitted(proof models.PaymentProof, order models.Order) {
	broadcastTo([]string{models.RoleAdmin, models.RoleStaff}, Message{
		Event: EventProofSubmitted,
		Data: map[string]interface{}{
			"proof": proof,
			"order": order,
		},
	})
}

// BroadcastProofReviewed announces an approve/reject decision.
func BroadcastProofReviewed(proof models.PaymentProof, order models.Order) {
	broadcastTo([]string{models.RoleAdmin, models.RoleStaff}, Message{
		Event: EventProofReviewed,
		Data: map[string]interface{}{
			"proof": proof,
			"order": order,
		},
	})
}

// BroadcastDriverAssigned notifies driver screens about an assignment.
func BroadcastDriverAssigned(order models.Order) {
	broadcastTo([]string{models.RoleAdmin, models.RoleDriver}, Message{
		Event: EventDriverAssigned,
		Data:  order,
	})
}

// BroadcastReservationUpdate pushes reservation changes to admin and staff.
func BroadcastReservationUpdate(reservation models.Reservation) {
	broadcastTo([]string{models.RoleAdmin, models.RoleStaff}, Message{
		Event: EventReservationUpdate,
		Data:  reservation,
	})
}

// BroadcastCheckoutAbandoned surfaces a newly captured abandoned checkout.
func BroadcastCheckoutAbandoned(checkout models.AbandonedCheckout) {
	broadcastTo([]string{models.RoleAdmin}, Message{
		Event: EventCheckoutAbandoned,
		Data:  checkout,
	})
}

// BroadcastCheckoutRecovered celebrates a reminder that converted.
func BroadcastCheckoutRecovered(checkout models.AbandonedCheckout) {
	broadcastTo([]string{models.RoleAdmin}, Message{
		Event: EventCheckoutRecovered,
		Data:  checkout,
	})
}

// BroadcastStaffNotification sends a plain text notice to staff screens.
func BroadcastStaffNotification(message string) {
	broadcastTo([]string{models.RoleAdmin, models.RoleStaff}, Message{
		Event: EventStaffNotif,
		Data:  message,
	})
}

// BroadcastDashboardUpdate refreshes aggregate dashboard numbers.
func BroadcastDashboardUpdate(data interface{}) {
	broadcast(Message{
		Event: EventDashboardUpdate,
		Data:  data,
	})
}

// BroadcastMessage sends an arbitrary message to everyone.
func BroadcastMessage(msg Message) {
	broadcast(msg)
}

func broadcast(msg Message) {
	broadcastTo(nil, msg)
}

// broadcastTo sends msg to clients whose role is in roles. A nil roles slice
// means every client.
func broadcastTo(roles []string, msg Message) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	for conn, role := range hub.clients {
		if roles != nil && !roleIn(role, roles) {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("Error sending message to %s client: %v", role, err)
			continue
		}
	}
}

func roleIn(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
