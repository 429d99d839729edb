package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/boomsapp/boomsd/internal/core/fees"
	"github.com/boomsapp/boomsd/internal/core/gift"
	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/money"
	"github.com/boomsapp/boomsd/internal/core/pipeline"
	"github.com/boomsapp/boomsd/internal/core/socialvalue"
	"github.com/boomsapp/boomsd/internal/interactions"
	"github.com/boomsapp/boomsd/internal/payments"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

const maxBodyBytes = 1 << 20

// decode reads a JSON request body into dst. A false return means the
// error response has already been written.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeErrorCode(w, "VALIDATION_ERROR", "malformed request body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	providers := []string{}
	for _, p := range s.providers.Configured() {
		providers = append(providers, string(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": s.environment,
		"providers":   providers,
		"time":        s.now().UTC().Format(time.RFC3339),
	})
}

// --- Accounts ---

type registerRequest struct {
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Phone == "" || req.FullName == "" {
		writeErrorCode(w, "VALIDATION_ERROR", "phone and full_name are required")
		return
	}
	if len(req.Password) < 8 {
		writeErrorCode(w, "VALIDATION_ERROR", "password must be at least 8 characters")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	user := &inventory.User{
		Phone:        req.Phone,
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Status:       inventory.StatusActive,
		Tier:         fees.TierBronze,
		CreatedAt:    s.now(),
	}
	id, err := s.db.Users().CreateUser(r.Context(), user)
	if err != nil {
		if relationaldb.IsConstraintError(err) {
			writeErrorCode(w, "VALIDATION_ERROR", "phone or email already registered")
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id":   id,
		"phone":     user.Phone,
		"full_name": user.FullName,
		"tier":      string(user.Tier),
	})
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := s.db.Users().GetUserByPhone(r.Context(), req.Phone)
	if err != nil || !CheckPassword(user.PasswordHash, req.Password) {
		// One message for both failure modes; no account probing.
		writeErrorCode(w, "UNAUTHORIZED", "invalid phone or password")
		return
	}

	token, err := s.auth.Issue(user.ID, user.IsAdmin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "bearer",
		"user_id":      user.ID,
		"full_name":    user.FullName,
		"tier":         string(user.Tier),
	})
}

// --- Wallet ---

func (s *Server) handleVirtualBalance(w http.ResponseWriter, r *http.Request, claims *Claims) {
	balance, err := s.db.Balances().GetVirtualBalance(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  claims.UserID,
		"balance":  balance.Balance.StringFCFA(),
		"currency": "FCFA",
	})
}

func (s *Server) handleCashBalance(w http.ResponseWriter, r *http.Request, claims *Claims) {
	balance, err := s.db.Balances().GetRealBalance(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":   claims.UserID,
		"available": balance.Available.StringFCFA(),
		"locked":    balance.Locked.StringFCFA(),
		"currency":  "FCFA",
	})
}

func (s *Server) handleDualBalance(w http.ResponseWriter, r *http.Request, claims *Claims) {
	real, err := s.db.Balances().GetRealBalance(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	virtual, err := s.db.Balances().GetVirtualBalance(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":         claims.UserID,
		"real_balance":    real.Available.StringFCFA(),
		"locked_balance":  real.Locked.StringFCFA(),
		"virtual_balance": virtual.Balance.StringFCFA(),
		"total_balance":   real.Available.Add(virtual.Balance).StringFCFA(),
		"currency":        "FCFA",
	})
}

func (s *Server) handleWalletTransactions(w http.ResponseWriter, r *http.Request, claims *Claims) {
	limit, offset := pagination(r, 50, 100)
	entries, err := s.db.Wallet().ListEntriesByUser(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]interface{}{
			"id":          e.ID,
			"amount":      e.Amount.StringFCFA(),
			"kind":        string(e.Kind),
			"description": e.Description,
			"status":      e.Status,
			"reference":   e.Reference,
			"created_at":  e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": out})
}

// --- Catalog ---

func boomJSON(b *inventory.Boom) map[string]interface{} {
	return map[string]interface{}{
		"id":                 b.ID,
		"token_id":           b.TokenID,
		"name":               b.Name,
		"base_price":         b.Social.BasePrice.StringFCFA(),
		"social_value":       b.Social.CurrentSocialValue.StringFCFA(),
		"market_value":       b.MarketValue().StringFCFA(),
		"available_editions": b.AvailableEditions,
		"max_editions":       b.MaxEditions,
		"active_event":       string(b.Social.ActiveEvent),
		"is_active":          b.IsActive,
	}
}

func (s *Server) handleListBooms(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 100)
	booms, err := s.db.Booms().ListActiveBooms(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(booms))
	for _, b := range booms {
		out = append(out, boomJSON(b))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"booms": out})
}

func (s *Server) handleGetBoom(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeErrorCode(w, "VALIDATION_ERROR", "invalid BOOM id")
		return
	}
	boom, err := s.db.Booms().GetBoom(r.Context(), id)
	if err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	writeJSON(w, http.StatusOK, boomJSON(boom))
}

// --- Trading ---

type purchaseRequest struct {
	BoomID   int64  `json:"bom_id"`
	TokenID  string `json:"token_id"`
	Quantity int64  `json:"quantity"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req purchaseRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	result, err := s.runner.Purchase(r.Context(), pipeline.PurchaseInput{
		BuyerID:  claims.UserID,
		BoomID:   req.BoomID,
		TokenID:  req.TokenID,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"boom_id":       result.BoomID,
		"quantity":      result.Quantity,
		"market_value":  result.MarketValue.StringFCFA(),
		"per_unit_fee":  result.PerUnitFee.StringFCFA(),
		"total_debited": result.Total.StringFCFA(),
		"holding_ids":   result.HoldingIDs,
		"social_event":  string(result.Social.Event),
	})
}

type marketBuyRequest struct {
	HoldingID int64  `json:"holding_id"`
	Price     string `json:"price"`
}

// handleMarketBuy is the buyer-initiated secondary purchase: the caller
// takes a listed holding at its current market value unless a price was
// agreed out of band.
func (s *Server) handleMarketBuy(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req marketBuyRequest
	if !decode(w, r, &req) {
		return
	}

	holding, err := s.db.Holdings().GetHolding(r.Context(), req.HoldingID)
	if err != nil {
		writeError(w, mapStorageErr(err))
		return
	}

	var price money.Amount
	if req.Price != "" {
		price, err = money.NewFromString(req.Price)
		if err != nil {
			writeError(w, err)
			return
		}
	} else {
		boom, err := s.db.Booms().GetBoom(r.Context(), holding.BoomID)
		if err != nil {
			writeError(w, mapStorageErr(err))
			return
		}
		price = boom.MarketValue()
	}

	s.completeSale(w, r, pipeline.SaleInput{
		SellerID:  holding.UserID,
		BuyerID:   claims.UserID,
		HoldingID: req.HoldingID,
		SellPrice: price,
	})
}

type marketSellRequest struct {
	HoldingID  int64  `json:"holding_id"`
	BuyerPhone string `json:"buyer_phone"`
	Price      string `json:"price"`
}

// handleMarketSell is the seller-initiated side: the caller names the
// buyer and the agreed price.
func (s *Server) handleMarketSell(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req marketSellRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Price == "" {
		writeErrorCode(w, "VALIDATION_ERROR", "price is required")
		return
	}
	price, err := money.NewFromString(req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	buyer, err := s.userByPhone(r, req.BuyerPhone)
	if err != nil {
		writeError(w, err)
		return
	}

	s.completeSale(w, r, pipeline.SaleInput{
		SellerID:  claims.UserID,
		BuyerID:   buyer.ID,
		HoldingID: req.HoldingID,
		SellPrice: price,
	})
}

func (s *Server) completeSale(w http.ResponseWriter, r *http.Request, in pipeline.SaleInput) {
	result, err := s.runner.Sale(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"boom_id":        result.BoomID,
		"new_holding_id": result.NewHoldingID,
		"price":          result.SellPrice.StringFCFA(),
		"fee":            result.Fee.StringFCFA(),
		"seller_net":     result.SellerNet.StringFCFA(),
	})
}

type transferRequest struct {
	ReceiverPhone string `json:"receiver_phone"`
	TokenID       string `json:"token_id"`
	Message       string `json:"message"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}
	receiver, err := s.userByPhone(r, req.ReceiverPhone)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.runner.Transfer(r.Context(), pipeline.TransferInput{
		SenderID:   claims.UserID,
		ReceiverID: receiver.ID,
		TokenID:    req.TokenID,
		Message:    req.Message,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"boom_id":        result.BoomID,
		"new_holding_id": result.NewHoldingID,
	})
}

// --- Gifting ---

type giftSendRequest struct {
	ReceiverPhone string `json:"receiver_phone"`
	UserBomID     int64  `json:"user_bom_id"`
	Message       string `json:"message"`
}

func (s *Server) handleGiftSend(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req giftSendRequest
	if !decode(w, r, &req) {
		return
	}
	receiver, err := s.userByPhone(r, req.ReceiverPhone)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.runner.SendGift(r.Context(), pipeline.GiftSendInput{
		SenderID:   claims.UserID,
		ReceiverID: receiver.ID,
		HoldingID:  req.UserBomID,
		Message:    req.Message,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gift_id":        result.GiftID,
		"reference":      result.Reference,
		"gift_fee":       result.GiftFee.StringFCFA(),
		"sharing_fee":    result.SharingFee.StringFCFA(),
		"total_fees":     result.TotalFees.StringFCFA(),
		"net_to_deliver": result.NetToDeliver.StringFCFA(),
		"expires_at":     result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type giftActionRequest struct {
	GiftID int64 `json:"gift_id"`
}

func (s *Server) handleGiftAccept(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req giftActionRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.runner.AcceptGift(r.Context(), pipeline.GiftAcceptInput{
		GiftID:     req.GiftID,
		ReceiverID: claims.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gift_id":      result.GiftID,
		"holding_id":   result.NewHoldingID,
		"net_credited": result.NetCredited.StringFCFA(),
	})
}

func (s *Server) handleGiftDecline(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req giftActionRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.runner.DeclineGift(r.Context(), pipeline.GiftAcceptInput{
		GiftID:     req.GiftID,
		ReceiverID: claims.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gift_id": req.GiftID,
		"status":  "declined",
	})
}

func giftJSON(g *gift.Gift) map[string]interface{} {
	return map[string]interface{}{
		"id":          g.ID,
		"sender_id":   g.SenderID,
		"receiver_id": g.ReceiverID,
		"boom_id":     g.BoomID,
		"message":     g.Message,
		"net_amount":  g.NetAmount.StringFCFA(),
		"status":      string(g.Status),
		"created_at":  g.CreatedAt.UTC().Format(time.RFC3339),
		"expires_at":  g.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleGiftInbox(w http.ResponseWriter, r *http.Request, claims *Claims) {
	limit, offset := pagination(r, 50, 100)
	gifts, err := s.db.Gifts().ListGiftsForUser(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	received := []map[string]interface{}{}
	sent := []map[string]interface{}{}
	pending := []map[string]interface{}{}
	for _, g := range gifts {
		row := giftJSON(g)
		if g.SenderID == claims.UserID {
			sent = append(sent, row)
			continue
		}
		received = append(received, row)
		if g.Status == gift.StatusPaid || g.Status == gift.StatusSent {
			pending = append(pending, row)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": map[string]int{
			"received": len(received),
			"sent":     len(sent),
			"pending":  len(pending),
		},
		"received": received,
		"sent":     sent,
		"pending":  pending,
	})
}

// --- Withdrawal ---

type withdrawalValidateRequest struct {
	UserBomID int64 `json:"user_bom_id"`
}

// handleWithdrawalValidate quotes a withdrawal without committing
// anything. The execute call re-checks everything under locks.
func (s *Server) handleWithdrawalValidate(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req withdrawalValidateRequest
	if !decode(w, r, &req) {
		return
	}

	holding, err := s.db.Holdings().GetHolding(r.Context(), req.UserBomID)
	if err != nil {
		writeError(w, mapStorageErr(err))
		return
	}
	if err := holding.CheckOwnedBy(claims.UserID); err != nil {
		writeError(w, err)
		return
	}
	boom, err := s.db.Booms().GetBoom(r.Context(), holding.BoomID)
	if err != nil {
		writeError(w, mapStorageErr(err))
		return
	}

	value := boom.MarketValue()
	quote := fees.BoomWithdrawal(value)
	eligible := !holding.IsSold && !holding.InEscrow() && boom.IsActive &&
		value.GreaterThanOrEqual(pipeline.WithdrawalMin) &&
		pipeline.WithdrawalMax.GreaterThanOrEqual(value)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"holding_id":   holding.ID,
		"boom_id":      boom.ID,
		"market_value": value.StringFCFA(),
		"fee":          quote.PlatformCommission.StringFCFA(),
		"net":          quote.Net.StringFCFA(),
		"minimum":      pipeline.WithdrawalMin.StringFCFA(),
		"maximum":      pipeline.WithdrawalMax.StringFCFA(),
		"eligible":     eligible,
	})
}

type withdrawalExecuteRequest struct {
	UserBomID   int64  `json:"user_bom_id"`
	Provider    string `json:"provider"`
	PhoneNumber string `json:"phone_number"`
}

func (s *Server) handleWithdrawalExecute(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req withdrawalExecuteRequest
	if !decode(w, r, &req) {
		return
	}
	provider := fees.Provider(req.Provider)
	client, err := s.providers.Client(provider)
	if err != nil {
		writeError(w, err)
		return
	}
	if !client.Configured() {
		writeError(w, payments.ErrProviderUnconfigured)
		return
	}

	result, err := s.runner.Withdrawal(r.Context(), pipeline.WithdrawalInput{
		UserID:      claims.UserID,
		HoldingID:   req.UserBomID,
		Provider:    provider,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	receipt, err := client.InitiatePayout(r.Context(), payments.PayoutRequest{
		UserID:            claims.UserID,
		Amount:            result.Net,
		PhoneNumber:       req.PhoneNumber,
		MerchantReference: result.Payment.MerchantReference,
	})
	if err != nil {
		// The committed payment row flips to FAILED so the holding's
		// value is not lost in limbo.
		if failErr := s.runner.FailPayment(r.Context(), provider,
			result.Payment.MerchantReference, "payout initiation failed"); failErr != nil {
			s.logger.Printf("withdrawal %s: fail-payment after payout error: %v",
				result.Payment.MerchantReference, failErr)
		}
		writeErrorCode(w, "PROVIDER_ERROR", "payout initiation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment_id":         result.Payment.ID,
		"reference":          result.Payment.MerchantReference,
		"provider_reference": receipt.ProviderReference,
		"amount":             result.Amount.StringFCFA(),
		"fee":                result.Fee.StringFCFA(),
		"net":                result.Net.StringFCFA(),
		"user_gain":          result.UserGain.StringFCFA(),
		"status":             "processing",
	})
}

// --- Deposits and webhooks ---

type depositInitiateRequest struct {
	Amount      string `json:"amount"`
	Method      string `json:"method"`
	PhoneNumber string `json:"phone_number"`
}

func (s *Server) handleDepositInitiate(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req depositInitiateRequest
	if !decode(w, r, &req) {
		return
	}
	provider := fees.Provider(req.Method)
	client, err := s.providers.Client(provider)
	if err != nil {
		writeError(w, err)
		return
	}
	if !client.Configured() {
		writeError(w, payments.ErrProviderUnconfigured)
		return
	}
	amount, err := money.NewFromString(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	reference := payments.DepositReference(claims.UserID, s.now())
	payment, err := s.runner.InitiateDeposit(r.Context(), pipeline.DepositInput{
		UserID:            claims.UserID,
		Provider:          provider,
		Amount:            amount,
		PhoneNumber:       req.PhoneNumber,
		MerchantReference: reference,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := client.InitiateDeposit(r.Context(), payments.DepositRequest{
		UserID:            claims.UserID,
		Amount:            amount,
		PhoneNumber:       req.PhoneNumber,
		MerchantReference: reference,
	})
	if err != nil {
		if failErr := s.runner.FailPayment(r.Context(), provider, reference,
			"deposit session initiation failed"); failErr != nil {
			s.logger.Printf("deposit %s: fail-payment after session error: %v", reference, failErr)
		}
		writeErrorCode(w, "PROVIDER_ERROR", "deposit session initiation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment_id": payment.ID,
		"reference":  reference,
		"provider":   string(provider),
		"amount":     amount.StringFCFA(),
		"session": map[string]interface{}{
			"session_id":   session.SessionID,
			"checkout_url": session.CheckoutURL,
			"expires_at":   session.ExpiresAt.UTC().Format(time.RFC3339),
			"extra":        session.Extra,
		},
	})
}

// signatureHeaders lists where each provider puts its HMAC, most
// specific first.
var signatureHeaders = []string{
	"Wave-Signature",
	"Stripe-Signature",
	"X-Signature",
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := fees.Provider(r.PathValue("provider"))
	if !provider.Valid() {
		writeErrorCode(w, "VALIDATION_ERROR", "unknown payment provider")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeErrorCode(w, "VALIDATION_ERROR", "unreadable payload")
		return
	}
	signature := ""
	for _, header := range signatureHeaders {
		if v := r.Header.Get(header); v != "" {
			signature = v
			break
		}
	}

	result, err := s.reconciler.Handle(r.Context(), provider, payload, signature)
	switch {
	case errors.Is(err, payments.ErrBadSignature),
		errors.Is(err, payments.ErrProviderUnconfigured),
		errors.Is(err, payments.ErrUnknownProvider):
		writeError(w, err)
		return
	case err != nil:
		// The provider retries on non-2xx; a transient settle failure
		// is worth a redelivery.
		s.logger.Printf("webhook %s: settle failed: %v", provider, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(result)})
}

// --- Interactions ---

type interactionRequest struct {
	BoomID  int64  `json:"bom_id"`
	Action  string `json:"action_type"`
	Channel string `json:"channel"`
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req interactionRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := s.recorder.Record(r.Context(), interactions.Input{
		UserID:  claims.UserID,
		BoomID:  req.BoomID,
		Action:  socialvalue.Action(req.Action),
		Channel: req.Channel,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"interaction_id": result.InteractionID,
		"deduplicated":   result.Deduplicated,
		"impact":         result.Outcome.Impact.StringFCFA(),
		"market_value":   result.MarketValue,
		"event":          string(result.Outcome.Event),
	})
}

// --- Admin ---

func (s *Server) handleAdminTreasury(w http.ResponseWriter, r *http.Request, claims *Claims) {
	if !claims.Admin {
		writeErrorCode(w, "FORBIDDEN", "admin access required")
		return
	}

	treasury, err := s.db.Treasury().GetTreasury(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	audit, err := s.db.Admin().ListAudit(r.Context(), 50, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	entries := make([]map[string]interface{}, 0, len(audit))
	for _, a := range audit {
		entries = append(entries, map[string]interface{}{
			"id":         a.ID,
			"user_id":    a.UserID,
			"action":     a.Action,
			"detail":     a.Detail,
			"amount":     a.Amount.StringFCFA(),
			"created_at": a.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance":              treasury.Balance.StringFCFA(),
		"total_fees_collected": treasury.TotalFeesCollected.StringFCFA(),
		"total_transactions":   treasury.TotalTransactions,
		"audit":                entries,
	})
}

// --- Helpers ---

func (s *Server) userByPhone(r *http.Request, phone string) (*inventory.User, error) {
	if phone == "" {
		return nil, errors.New("VALIDATION_ERROR: receiver phone is required")
	}
	user, err := s.db.Users().GetUserByPhone(r.Context(), phone)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return user, nil
}

func pagination(r *http.Request, def, max int) (limit, offset int) {
	limit = def
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > max {
		limit = max
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// mapStorageErr converts the storage not-found sentinels into coded
// errors; everything else passes through.
func mapStorageErr(err error) error {
	switch {
	case errors.Is(err, relationaldb.ErrUserNotFound):
		return inventory.ErrUserNotFound
	case errors.Is(err, relationaldb.ErrBoomNotFound):
		return errors.New("BOOM_NOT_FOUND: no such BOOM")
	case errors.Is(err, relationaldb.ErrHoldingNotFound):
		return errors.New("HOLDING_NOT_FOUND: no such holding")
	case errors.Is(err, relationaldb.ErrGiftNotFound):
		return gift.ErrNotFound
	case errors.Is(err, relationaldb.ErrBalanceNotFound):
		return inventory.ErrUserNotFound
	default:
		return err
	}
}
