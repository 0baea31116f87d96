package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/henryk/ipsec-me/config"
	"github.com/henryk/ipsec-me/internal/db"
	"github.com/henryk/ipsec-me/internal/health"
	"github.com/henryk/ipsec-me/internal/logs"
	"github.com/henryk/ipsec-me/internal/middleware"
	"github.com/henryk/ipsec-me/internal/models"
	"github.com/henryk/ipsec-me/internal/pki"
	"github.com/henryk/ipsec-me/internal/provision"
	"github.com/henryk/ipsec-me/internal/repo"
	"github.com/henryk/ipsec-me/internal/token"
	"github.com/henryk/ipsec-me/internal/vpn"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB (опционально) */
	if drv := a.cfg.Database.Driver; drv != "" {
		d, err := db.Open(drv, a.cfg.Database.DSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		a.db = d

		if err := a.db.AutoMigrate(&models.Account{},
			&models.Certificate{},
			&models.CertificateAuthority{},
			&models.VPNServer{},
			&models.VPNUser{},
			&models.Device{}); err != nil {
			log.Fatalf("db migrate failed: %v", err)
		}
	}

	engine := pki.NewEngine(a.cfg.PKI.RSAKeySize)
	signer, err := token.NewSigner([]byte(a.cfg.Provisioning.Secret), token.ProvisionSalt)
	if err != nil {
		log.Fatalf("token signer init failed: %v", err)
	}

	/* 3) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.AccessLog,
	)

	/* 4) Health */
	if a.db != nil {
		health.RegisterRoutesWithDB(a.Router, a.db) // /healthz, /readyz
	} else {
		health.RegisterRoutes(a.Router) // только /healthz
	}

	/* 5) Provisioning + API */
	if a.db != nil {
		svc := vpn.New(a.db, engine, a.cfg.PKI.PSKEntropy)
		h := provision.NewHandler(
			repo.NewDeviceStore(a.db),
			repo.NewVPNStore(a.db),
			signer,
			svc,
		)
		provision.RegisterRoutes(a.Router, h, a.cfg.API.SharedSecret)
	} else {
		// Без БД — деградированный режим: только справочник видов устройств.
		h := provision.NewHandler(nil, nil, signer, nil)
		api := a.Router.PathPrefix("/api/v1").Subrouter()
		api.Use(provision.SharedSecretAuth(a.cfg.API.SharedSecret))
		api.HandleFunc("/device-types", h.ListDeviceTypes).Methods(http.MethodGet)
	}

	/* (необязательно) вывести известные маршруты в лог при старте */
	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	// Жёсткие таймауты — это важно для production
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	return nil
}
