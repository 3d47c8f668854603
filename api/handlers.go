package api

import (
	"net/http"

	"arcade/models"

	"github.com/gin-gonic/gin"
)

const idempotencyKeyHeader = "Idempotency-Key"

type handlers struct {
	services Services
}

func (h *handlers) health(c *gin.Context) {
	respondOK(c, gin.H{})
}

func (h *handlers) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidJSON, "invalid JSON")
		return
	}

	result, err := h.services.Users.Register(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"user":  userBody(result.User, result.History),
		"token": result.Token,
	})
}

func (h *handlers) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidJSON, "invalid JSON")
		return
	}

	result, err := h.services.Users.Login(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"user":  userBody(result.User, result.History),
		"token": result.Token,
	})
}

func (h *handlers) applyTx(c *gin.Context) {
	var req txRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidJSON, "invalid JSON")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.services.Ledger.ApplyDelta(c.Request.Context(), currentUser(c), amount, req.Game)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"score":     result.Balance,
		"totalWins": result.TotalWins,
		"maxWin":    result.BestWin,
	})
}

func (h *handlers) transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidJSON, "invalid JSON")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	key := c.GetHeader(idempotencyKeyHeader)
	if key == "" {
		key = req.IdempotencyKey
	}

	result, err := h.services.Transfers.Transfer(c.Request.Context(), currentUser(c), models.TransferRequest{
		Receiver:       string(req.Receiver),
		Amount:         amount,
		IdempotencyKey: key,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"txId":       result.TxCode,
		"amount":     result.Amount,
		"sender":     result.SenderName,
		"receiver":   result.ReceiverName,
		"receiverId": result.ReceiverID,
		"date":       result.CreatedAt.UnixMilli(),
		"newBalance": result.NewSenderBalance,
		"replayed":   result.Replayed,
	})
}

func (h *handlers) transferQuery(c *gin.Context) {
	user := currentUser(c)

	switch c.Query("type") {
	case "history":
		views, err := h.services.Transfers.History(c.Request.Context(), user.ID)
		if err != nil {
			respondError(c, err)
			return
		}

		items := make([]gin.H, 0, len(views))
		for _, v := range views {
			items = append(items, gin.H{
				"id":            v.TxCode,
				"amount":        v.Amount,
				"created_at":    v.CreatedAt.Unix(),
				"sender_name":   v.SenderName,
				"receiver_name": v.ReceiverName,
				"sender_id":     v.SenderID,
			})
		}
		respondOK(c, gin.H{"items": items, "currentUserId": user.ID})

	case "check":
		receiver, err := h.services.Transfers.LookupReceiver(c.Request.Context(), c.Query("q"))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, gin.H{"name": receiver.Name, "id": receiver.ID})

	default:
		writeError(c, http.StatusBadRequest, codeInvalidQuery, "unknown query type")
	}
}

func (h *handlers) leaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	items := []gin.H{}

	switch models.ParseLeaderboardTab(c.Query("tab")) {
	case models.LeaderboardTabWeekly:
		entries, err := h.services.Leaderboards.Weekly(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		items = rankedItems(entries)

	case models.LeaderboardTabStreak:
		entries, err := h.services.Leaderboards.Streak(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		for _, e := range entries {
			items = append(items, gin.H{
				"id":         e.ID,
				"name":       e.Name,
				"game":       e.Game,
				"amount":     e.Amount,
				"created_at": e.CreatedAt.Unix(),
			})
		}

	default:
		entries, err := h.services.Leaderboards.Global(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		items = rankedItems(entries)
	}

	respondOK(c, gin.H{"items": items})
}

func rankedItems(entries []*models.LeaderboardEntry) []gin.H {
	items := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		items = append(items, gin.H{"id": e.UserID, "name": e.Name, "score": e.Score})
	}
	return items
}

// userBody is the account summary returned by register and login
func userBody(user *models.User, history []*models.HistoryEntry) gin.H {
	entries := make([]gin.H, 0, len(history))
	for _, e := range history {
		entries = append(entries, gin.H{
			"game":   e.Game,
			"amount": e.Amount,
			"date":   e.CreatedAt.UnixMilli(),
		})
	}

	return gin.H{
		"id":        user.ID,
		"name":      user.Name,
		"score":     user.Balance,
		"totalWins": user.TotalWins,
		"bestWin":   user.BestWin,
		"history":   entries,
	}
}
