package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/invitetree/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler reports whether the service can reach its database and whether
// that deployment can run prune transactions.
type Handler struct {
	Client              *mongo.Client
	RequireTransactions bool
	Log                 *zap.Logger
}

func NewHandler(client *mongo.Client, requireTransactions bool, logger *zap.Logger) *Handler {
	return &Handler{
		Client:              client,
		RequireTransactions: requireTransactions,
		Log:                 logger,
	}
}

type healthResponse struct {
	Status       string `json:"status"`
	Database     string `json:"database"`
	Transactions bool   `json:"transactions"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "transactions":true }
//
// On DB failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable", "error":"…" }
//
// When transactions are required but the deployment is standalone the
// status is "degraded" with 200; reads still work, prune does not.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	resp.Transactions = supportsTransactions(ctx, h.Client)
	if h.RequireTransactions && !resp.Transactions {
		resp.Status = "degraded"
		resp.Message = "Deployment is not a replica set; prune is unavailable"
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// supportsTransactions reports whether the server is a replica set member
// or a mongos, the two topologies that accept multi-document transactions.
func supportsTransactions(ctx context.Context, client *mongo.Client) bool {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		return false
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid"
}
