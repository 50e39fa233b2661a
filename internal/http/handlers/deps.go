package handlers

import (
	"time"

	"bookfair/internal/config"
	"bookfair/internal/repos"
	"bookfair/internal/services"

	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"
)

type Deps struct {
	Auth *services.AuthService

	AuthHandler   *AuthHandler
	BuyerHandler  *BuyerHandler
	SellerHandler *SellerHandler
	CartHandler   *CartHandler
	OrderHandler  *OrderHandler
	API           *APIHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config) *Deps {
	userRepo := repos.NewUserRepo(db)
	bookRepo := repos.NewBookRepo(db)
	cartRepo := repos.NewCartRepo(db)
	orderRepo := repos.NewOrderRepo(db)

	authSvc := &services.AuthService{Users: userRepo, Tokens: services.NewTokens(cfg.JWTSecret, cfg.JWTTTL)}
	catalogSvc := services.NewCatalogService(bookRepo)
	cartSvc := services.NewCartService(cartRepo, bookRepo)
	orderSvc := services.NewOrderService(orderRepo, cartRepo)

	secure := cfg.Production()
	return &Deps{
		Auth:          authSvc,
		AuthHandler:   &AuthHandler{Auth: authSvc, SecureCookies: secure},
		BuyerHandler:  &BuyerHandler{Catalog: catalogSvc, Orders: orderSvc},
		SellerHandler: &SellerHandler{Catalog: catalogSvc, Orders: orderSvc},
		CartHandler:   &CartHandler{Cart: cartSvc},
		OrderHandler:  &OrderHandler{Cart: cartSvc, Orders: orderSvc},
		API: &APIHandler{
			Auth:    authSvc,
			Catalog: catalogSvc,
			Cart:    cartSvc,
			Orders:  orderSvc,
			// one checkout every two seconds per buyer, bursts of three
			OrderThrottle: NewThrottle(rate.Every(2*time.Second), 3),
		},
	}
}
