package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"gawulo-platform/services/api/internal/auth"
	"gawulo-platform/services/api/internal/ws"
	"gawulo-platform/shared/pkg/models"
)

// Close codes surfaced to clients so they can tell an auth failure apart from
// a network drop and avoid pointless reconnect loops.
const (
	wsCloseNoToken   = 4001
	wsCloseBadToken  = 4003
	wsCloseNoProfile = 4004
)

type WSHandler struct {
	Hub     *ws.Hub
	Issuer  *auth.Issuer
	Vendors VendorStore
	Log     zerolog.Logger

	upgrader websocket.Upgrader
}

func NewWSHandler(hub *ws.Hub, issuer *auth.Issuer, vendors VendorStore, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		Hub:     hub,
		Issuer:  issuer,
		Vendors: vendors,
		Log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from arbitrary origins; auth is the
			// token, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Orders upgrades the connection and joins the caller to their order-updates
// group. Authentication uses a token query parameter because browsers cannot
// set headers on WebSocket handshakes. Failures close the socket with an
// application close code instead of an HTTP error so clients that already
// upgraded can read the reason.
func (h *WSHandler) Orders(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Debug().Err(err).Msg("ws upgrade failed")
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		closeWith(conn, wsCloseNoToken, "missing token")
		return
	}
	claims, err := h.Issuer.Parse(token, "access")
	if err != nil {
		closeWith(conn, wsCloseBadToken, "invalid token")
		return
	}

	var group string
	switch claims.Role {
	case models.RoleAdmin:
		group = ws.GroupAdmin
	case models.RoleVendor:
		v, err := h.Vendors.ByUserID(r.Context(), claims.UserID)
		if err != nil {
			closeWith(conn, wsCloseNoProfile, "no vendor profile")
			return
		}
		group = ws.VendorGroup(v.ID)
	default:
		group = ws.CustomerGroup(claims.UserID)
	}

	client := ws.NewClient(h.Hub, conn, group, claims.Role)
	go client.Run()
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	conn.Close()
}
