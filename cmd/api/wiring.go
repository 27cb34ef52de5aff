package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/decred/slog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"zimship/address"
	"zimship/announcement"
	"zimship/auth"
	"zimship/config"
	"zimship/csrf"
	"zimship/db"
	"zimship/email"
	"zimship/gallery"
	"zimship/logging"
	"zimship/mfa"
	"zimship/mq"
	"zimship/notify"
	"zimship/obs"
	"zimship/payment"
	"zimship/review"
	"zimship/secure"
	"zimship/shipment"
	"zimship/ticket"
	"zimship/validate"
)

// app owns the long-lived clients behind the server.
type app struct {
	server    *Server
	pool      *pgxpool.Pool
	redis     *redis.Client
	publisher *mq.Publisher
	consumer  *mq.Consumer
	worker    *notify.Worker
}

// meteredPublisher counts every publish attempt.
type meteredPublisher struct {
	pub     *mq.Publisher
	metrics *obs.Metrics
}

func (m meteredPublisher) PublishJSON(ctx context.Context, key string, v any) error {
	err := m.pub.PublishJSON(ctx, key, v)
	m.metrics.EventPublished(key, err)
	return err
}

// newApp connects whatever is configured. Missing settings leave the
// matching services nil; nothing here fails for an unset variable.
func newApp(ctx context.Context, cfg config.Config, bknd *logging.Backend) (*app, error) {
	log := bknd.Logger("API")
	a := &app{}
	srv := &Server{
		log:       log,
		metrics:   obs.NewMetrics(),
		validator: validate.New(),
	}
	a.server = srv

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	switch {
	case errors.Is(err, db.ErrNotConfigured):
		log.Warnf("DATABASE_URL not set; database routes will fail")
	case err != nil:
		log.Errorf("Database unavailable: %v", err)
	default:
		a.pool = pool
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, pool); err != nil {
				a.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
	}

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		srv.csrf = csrf.NewRedisStore(a.redis, cfg.CSRFTokenTTL)
	} else {
		log.Warnf("REDIS_ADDR not set; form tokens and logout revocation disabled")
	}

	var events meteredPublisher
	haveEvents := false
	if cfg.RabbitURL != "" {
		pub, err := mq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			log.Errorf("Event publisher unavailable: %v", err)
		} else {
			a.publisher = pub
			events = meteredPublisher{pub: pub, metrics: srv.metrics}
			haveEvents = true
		}
	}

	mailer, err := newMailer(cfg, bknd.Logger("MAIL"))
	if err != nil {
		a.Close()
		return nil, err
	}
	if mailer != nil {
		srv.mailService = mailer
	}

	provider, err := payment.NewProvider(cfg.PaymentProvider, cfg.StripeSecretKey, cfg.OmisePublicKey, cfg.OmiseSecretKey)
	if err != nil {
		log.Errorf("Payment provider: %v", err)
	}
	paySvc := payment.NewService(provider, cfg.SiteURL).WithLogger(bknd.Logger("PAYM"))
	if haveEvents {
		paySvc.WithEvents(events)
	}
	srv.paymentService = paySvc

	if a.pool != nil {
		authSvc := auth.NewService(auth.NewRepository(a.pool), cfg.JWTSecret).
			WithTTL(cfg.JWTTTL).
			WithLogger(bknd.Logger("AUTH"))
		if a.redis != nil {
			authSvc.WithRevoker(auth.NewRedisRevoker(a.redis))
		}
		srv.authService = authSvc

		shipSvc := shipment.NewService(shipment.NewRepository(a.pool)).WithLogger(bknd.Logger("SHIP"))
		notifySvc := notify.NewService(notify.NewRepository(a.pool)).WithLogger(bknd.Logger("NTFY"))
		mfaSvc := mfa.NewService(mfa.NewRepository(a.pool), newKeyring(cfg, log)).WithLogger(bknd.Logger("MFA"))
		if haveEvents {
			shipSvc.WithEvents(events)
			notifySvc.WithEvents(events)
			mfaSvc.WithEvents(events)
		}
		srv.shipmentService = shipSvc
		srv.notifyService = notifySvc
		srv.mfaService = mfaSvc

		srv.addressService = address.NewService(address.NewRepository(a.pool))
		srv.reviewService = review.NewService(review.NewRepository(a.pool))
		srv.galleryService = gallery.NewService(gallery.NewRepository(a.pool))
		srv.announcementService = announcement.NewService(announcement.NewRepository(a.pool)).WithLogger(log)

		ticketSvc := ticket.NewService(ticket.NewRepository(a.pool)).WithLogger(log)
		if mailer != nil {
			ticketSvc.WithMailer(mailer)
		}
		srv.ticketService = ticketSvc
	}

	if cfg.RabbitURL != "" && mailer != nil {
		consumer, err := mq.NewConsumer(cfg.RabbitURL, cfg.RabbitExchange, cfg.RabbitQueue, notify.WorkerKeys, 8)
		if err != nil {
			log.Errorf("Notification consumer unavailable: %v", err)
		} else {
			a.consumer = consumer
			a.worker = notify.NewWorker(mailer, bknd.Logger("NTFY"))
		}
	}

	return a, nil
}

// newMailer returns nil when no Resend key is configured.
func newMailer(cfg config.Config, log slog.Logger) (*email.Service, error) {
	if cfg.ResendAPIKey == "" {
		log.Warnf("RESEND_API_KEY not set; email routes will fail")
		return nil, nil
	}
	svc, err := email.NewService(email.NewResendSender(cfg.ResendAPIKey), cfg.EmailFrom, cfg.SupportEmail)
	if err != nil {
		return nil, err
	}
	return svc.WithLogger(log), nil
}

// newKeyring returns nil when the key is missing or malformed so MFA
// storage fails per request instead of at startup.
func newKeyring(cfg config.Config, log slog.Logger) *secure.Keyring {
	if cfg.EncryptionKeyCurrent == "" {
		return nil
	}
	kr, err := secure.NewKeyring(cfg.AppEnv, cfg.EncryptionKeyCurrent, cfg.EncryptionKeyPrevious)
	if err != nil {
		log.Errorf("Encryption keys: %v", err)
		return nil
	}
	return kr
}

func (a *app) Close() {
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
