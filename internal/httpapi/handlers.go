package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"solana-marketplace/internal/auth"
	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/solana"
	"solana-marketplace/internal/wallet"
)

type contextKey string

// sessionAddressKey carries the authenticated wallet address.
const sessionAddressKey contextKey = "session_address"

// requireSession rejects requests without a plausible persisted session.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, address := s.gate.Check()
		if state != auth.StateAuthenticated {
			writeError(w, http.StatusUnauthorized, "no_active_session", "connect a wallet first")
			return
		}
		ctx := context.WithValue(r.Context(), sessionAddressKey, address)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionAddress(r *http.Request) string {
	address, _ := r.Context().Value(sessionAddressKey).(string)
	return address
}

type connectRequest struct {
	Provider domain.ProviderKind `json:"provider"`
}

type connectResponse struct {
	Address    string              `json:"wallet_address"`
	WalletType domain.ProviderKind `json:"wallet_type"`
}

// handleConnect establishes a wallet session. An empty provider means "use
// the first available one" in fallback order.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	// An absent body means "pick the first available provider".
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}
	if req.Provider != "" && !req.Provider.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid_input", "unknown provider")
		return
	}

	address, err := s.manager.Connect(r.Context(), req.Provider)
	if errors.Is(err, wallet.ErrProviderUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "provider_unavailable", "no wallet provider is available")
		return
	}
	if errors.Is(err, wallet.ErrUserRejected) {
		writeError(w, http.StatusPaymentRequired, "user_rejected", "the connection request was declined")
		return
	}
	if err != nil {
		s.logger.Error("wallet connect failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "wallet connection failed")
		return
	}

	session, err := s.manager.CurrentSession()
	if err != nil {
		s.logger.Error("session readback failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "wallet connection failed")
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{Address: address, WalletType: session.ProviderKind})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Disconnect(r.Context()); err != nil {
		s.logger.Error("wallet disconnect failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "disconnect failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.manager.CurrentSession()
	if wallet.IsNoSession(err) {
		writeError(w, http.StatusUnauthorized, "no_active_session", "no wallet connected")
		return
	}
	if err != nil {
		s.logger.Error("session read failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "session read failed")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type balanceResponse struct {
	Address string          `json:"wallet_address"`
	Balance decimal.Decimal `json:"balance_sol"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	balance, err := s.manager.Balance(r.Context(), address)
	if errors.Is(err, solana.ErrInvalidAddress) {
		writeError(w, http.StatusBadRequest, "invalid_address", "not a valid wallet address")
		return
	}
	if err != nil {
		s.logger.Warn("balance query failed", "address", address, "err", err)
		writeError(w, http.StatusBadGateway, "network_unreachable", "balance query failed")
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: address, Balance: balance})
}

type listingPayload struct {
	ID            int64           `json:"id"`
	SellerAddress string          `json:"seller_address"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"image_url"`
	Sold          bool            `json:"sold"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toListingPayload(l *domain.Listing) listingPayload {
	return listingPayload{
		ID:            l.ID,
		SellerAddress: l.SellerAddress,
		Title:         l.Title,
		Description:   l.Description,
		Price:         l.Price,
		Category:      l.Category,
		ImageURL:      l.ImageURL,
		Sold:          l.Sold,
		CreatedAt:     l.CreatedAt,
	}
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.listings.ListOpen(r.Context())
	if err != nil {
		s.logger.Error("list listings failed", "err", err)
		writeStorageError(w, err)
		return
	}
	out := make([]listingPayload, 0, len(listings))
	for _, l := range listings {
		out = append(out, toListingPayload(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "listing id must be an integer")
		return
	}
	listing, err := s.listings.GetByID(r.Context(), id)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingPayload(listing))
}

type createListingRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}

	listing := &domain.Listing{
		SellerAddress: sessionAddress(r),
		Title:         req.Title,
		Description:   req.Description,
		Price:         req.Price,
		Category:      req.Category,
		ImageURL:      req.ImageURL,
		CreatedAt:     time.Now().UTC(),
	}
	if !listing.Validate() {
		writeError(w, http.StatusBadRequest, "invalid_input", "title and a positive price are required")
		return
	}
	if err := s.listings.Insert(r.Context(), listing); err != nil {
		s.logger.Error("create listing failed", "err", err)
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListingPayload(listing))
}

type buyRequest struct {
	ListingID int64 `json:"listing_id"`
}

type buyResponse struct {
	Signature string `json:"signature"`
	ListingID int64  `json:"listing_id"`
}

// handleBuy runs the full settlement for one listing purchase.
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}

	listing, err := s.listings.GetByID(r.Context(), req.ListingID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	buyer := sessionAddress(r)
	signature, err := s.engine.Settle(r.Context(), buyer, listing.SellerAddress, listing.Price, listing.ID)
	if err != nil {
		writeSettlementError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buyResponse{Signature: signature, ListingID: listing.ID})
}

type transactionsResponse struct {
	Purchases []*domain.TransactionRecord `json:"purchases"`
	Sales     []*domain.TransactionRecord `json:"sales"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	address := sessionAddress(r)

	purchases, err := s.transactions.ListByBuyer(r.Context(), address)
	if err != nil {
		s.logger.Error("list purchases failed", "err", err)
		writeStorageError(w, err)
		return
	}
	sales, err := s.transactions.ListBySeller(r.Context(), address)
	if err != nil {
		s.logger.Error("list sales failed", "err", err)
		writeStorageError(w, err)
		return
	}
	if purchases == nil {
		purchases = []*domain.TransactionRecord{}
	}
	if sales == nil {
		sales = []*domain.TransactionRecord{}
	}
	writeJSON(w, http.StatusOK, transactionsResponse{Purchases: purchases, Sales: sales})
}

type registerRequest struct {
	WalletAddress string `json:"wallet_address"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	School        string `json:"school"`
	StudentIDURL  string `json:"student_id_url"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		writeError(w, http.StatusNotImplemented, "not_supported", "registration is not enabled")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}
	if err := solana.ValidateAddress(req.WalletAddress); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "not a valid wallet address")
		return
	}

	user := &domain.User{
		WalletAddress: req.WalletAddress,
		Name:          req.Name,
		Email:         req.Email,
		School:        req.School,
		StudentIDURL:  req.StudentIDURL,
	}
	if err := s.users.Insert(r.Context(), user); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stream.Active())
}

// handleNotificationsWS pushes notification events over a websocket until the
// client goes away.
func (s *Server) handleNotificationsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	events, cancel := s.stream.Subscribe()
	defer cancel()

	// Drain client frames so close messages are noticed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
