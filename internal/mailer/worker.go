package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/recordshelf/apiserver/config"
	"github.com/recordshelf/apiserver/internal/mq"
	"github.com/recordshelf/apiserver/types"
	"go.uber.org/zap"
)

// Worker consumes verification-email jobs from the message queue and
// delivers them over SMTP.
type Worker struct {
	queue  *mq.MQ
	mailer *Mailer
	logger *zap.Logger
}

// NewWorker wires the broker backend and SMTP sender from config.
func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(ctx, cfg.MQ)
	if err != nil {
		return nil, err
	}

	sender, err := New(cfg.SMTP)
	if err != nil {
		return nil, err
	}

	return &Worker{
		queue:  mq.New(backend),
		mailer: sender,
		logger: logger,
	}, nil
}

// Run blocks consuming the verification-email queue until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	defer func() { _ = w.logger.Sync() }()
	defer func() { _ = w.queue.Close() }()

	w.logger.Info("mail worker started", zap.String("queue", mq.VerificationEmailQueue))
	return w.queue.Subscribe(ctx, mq.VerificationEmailQueue, w.handle)
}

func (w *Worker) handle(ctx context.Context, msg mq.Message) error {
	var job types.VerificationEmailJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		// Malformed payloads never become deliverable; drop instead of
		// redelivering forever.
		w.logger.Error("drop malformed verification job",
			zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}

	if err := w.mailer.Send(job.Email, "Confirm your Recordshelf account", VerificationBody(job.Username, job.Link)); err != nil {
		w.logger.Error("send verification email",
			zap.String("email", job.Email), zap.Error(err))
		return err
	}

	w.logger.Info("verification email sent", zap.String("email", job.Email))
	return nil
}

func newBackend(ctx context.Context, cfg config.MQConfig) (mq.Backend, error) {
	switch cfg.Backend {
	case "rabbitmq":
		return mq.NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		return mq.NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unsupported mq backend %q", cfg.Backend)
	}
}
