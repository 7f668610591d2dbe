// Package txn runs a unit of work inside a MongoDB multi-document transaction.
//
// Transactions use snapshot read concern and majority write concern, so every
// read inside fn observes one consistent point in time and a concurrent
// writer touching the same documents aborts one side with a write conflict.
// Nothing is retried here: a failed transaction is rolled back and the error
// returned so the caller can reissue the request.
//
// Standalone servers (local development, most CI) do not support
// transactions. Run falls back to executing fn directly and logs a warning.
// RunRequired refuses instead.
package txn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/invitetree/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

// ErrUnsupported is returned by RunRequired when the server cannot run
// multi-document transactions.
var ErrUnsupported = errors.New("transactions are not supported by this MongoDB deployment")

// Run executes fn in a transaction, falling back to a plain execution when
// the deployment does not support transactions.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	return run(ctx, db, log, fn, true)
}

// RunRequired executes fn in a transaction and fails with ErrUnsupported
// rather than running without one.
func RunRequired(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	return run(ctx, db, log, fn, false)
}

func run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error, fallback bool) error {
	if log == nil {
		log = zap.NewNop()
	}

	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return unsupported(ctx, log, fn, fallback, err)
		}
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority()).
		SetReadPreference(readpref.Primary())

	err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(opts); err != nil {
			return err
		}
		if err := fn(sc); err != nil {
			abortCtx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
			defer cancel()
			if abortErr := sc.AbortTransaction(abortCtx); abortErr != nil && !IsNotSupported(err) {
				log.Warn("transaction abort failed", zap.Error(abortErr))
			}
			return err
		}
		commitCtx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
		defer cancel()
		return sc.CommitTransaction(commitCtx)
	})
	if err != nil && IsNotSupported(err) {
		return unsupported(ctx, log, fn, fallback, err)
	}
	return err
}

func unsupported(ctx context.Context, log *zap.Logger, fn func(ctx context.Context) error, fallback bool, cause error) error {
	if !fallback {
		return fmt.Errorf("%w: %v", ErrUnsupported, cause)
	}
	log.Warn("transactions not supported; running without transaction", zap.Error(cause))
	return fn(ctx)
}

// IsNotSupported reports whether err means the server cannot run
// transactions (standalone mongod, unsupported storage engine).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, 51, 263: // IllegalOperation, IllegalOperation (legacy), OperationNotSupportedInTransaction
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	has := func(s string) bool { return strings.Contains(msg, s) }
	switch {
	case has("transaction") && has("replica set"):
		return true
	case has("session") && has("not supported"):
		return true
	case has("transaction") && has("session"):
		return true
	case has("illegal operation"):
		return true
	}
	return false
}
