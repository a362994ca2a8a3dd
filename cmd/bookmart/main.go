package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"bookmart/internal/cart"
	"bookmart/internal/catalog"
	"bookmart/internal/config"
	"bookmart/internal/credstore"
	"bookmart/internal/gateway"
	"bookmart/internal/searchclient"
	"bookmart/internal/session"
	"bookmart/internal/token"
	"bookmart/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	requestTimeout, err := config.ParseDuration(cfg.RequestTimeout, 10*time.Second)
	if err != nil {
		log.Fatalf("failed to parse requestTimeout: %v", err)
	}
	errorClearAfter, err := config.ParseDuration(cfg.ErrorClearAfter, 5*time.Second)
	if err != nil {
		log.Fatalf("failed to parse errorClearAfter: %v", err)
	}
	cartFlushDelay, err := config.ParseDuration(cfg.CartFlushDelay, 300*time.Millisecond)
	if err != nil {
		log.Fatalf("failed to parse cartFlushDelay: %v", err)
	}

	var creds credstore.Store
	if cfg.RedisAddr != "" {
		creds = credstore.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, "")
	} else {
		creds, err = credstore.NewFileStore(cfg.StoragePath)
		if err != nil {
			log.Fatalf("failed to init credential store: %v", err)
		}
	}

	validator := &token.Validator{}
	gw := gateway.New(gateway.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: requestTimeout,
		TokenSource: func() string {
			s, _ := creds.Session()
			return s.Token
		},
		Validator: validator,
	})

	mgr := session.New(session.Config{
		Gateway:         gw,
		Credentials:     creds,
		Tokens:          validator,
		ErrorClearAfter: errorClearAfter,
	})
	search := searchclient.New(cfg.SearchBaseURL, cfg.SearchAPIKey, requestTimeout)
	books := catalog.New(catalog.Config{
		Gateway:         gw,
		Search:          search,
		Session:         mgr,
		ErrorClearAfter: errorClearAfter,
	})
	cartSync := cart.New(cart.Config{
		Gateway:         gw,
		Credentials:     creds,
		Session:         mgr,
		FlushDelay:      cartFlushDelay,
		ErrorClearAfter: errorClearAfter,
	})
	defer cartSync.Close()
	defer books.Close()

	// Any 401/403 from any call invalidates the session; the cart
	// snapshot is flushed so the local mirror survives the logout.
	gw.OnUnauthorized(func() {
		mgr.ForceLogout()
		cartSync.Flush()
	})

	ctx := context.Background()
	state := mgr.Init(ctx)
	logger.Info("session initialized", "state", state.String())

	books.Refresh(ctx)
	cartSync.Load(ctx)
	slog.Info("storefront data layer ready",
		"books", len(books.Books()),
		"cartItems", cartSync.ItemCount(),
		"cartTotal", cartSync.Total(),
	)
}
