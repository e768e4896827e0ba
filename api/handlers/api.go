package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tradelink-app/tradelink-api/api"
	"github.com/tradelink-app/tradelink-api/api/scheduler"
	"github.com/tradelink-app/tradelink-api/config"
	"github.com/tradelink-app/tradelink-api/databases"
	"github.com/tradelink-app/tradelink-api/models"
	"github.com/tradelink-app/tradelink-api/notifier"
	"github.com/tradelink-app/tradelink-api/payments"
	"github.com/tradelink-app/tradelink-api/sessions"
	"github.com/tradelink-app/tradelink-api/social"
	"github.com/tradelink-app/tradelink-api/storage"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Sessions  *sessions.Store
	Scheduler *scheduler.Scheduler

	dbHelper databases.DatabaseHelper
	storage  storage.DocumentStorage
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	adb := databases.NewAccountDatabase(a.dbHelper)
	pdb := databases.NewPendingRegistrationDatabase(a.dbHelper)
	sadb := databases.NewSocialAuthErrorDatabase(a.dbHelper)

	notify := notifier.New(&a.Config)
	policy := notifier.PolicyFromName(a.Config.NotifierPolicy)

	reg := Registration{ADB: adb, PDB: pdb, Sessions: a.Sessions, Notifier: notify, Policy: policy}
	soc := Social{
		ADB:      adb,
		EDB:      sadb,
		Sessions: a.Sessions,
		Conf:     &a.Config,
		Verifiers: social.Verifiers{
			social.ProviderGoogle:   &social.GoogleVerifier{ClientID: a.Config.GoogleClientID},
			social.ProviderFacebook: &social.FacebookVerifier{GraphURL: a.Config.FacebookGraphURL},
		},
	}
	pw := Password{ADB: adb, Sessions: a.Sessions, Notifier: notify, Policy: policy, Conf: &a.Config}
	prof := Profile{ADB: adb, Sessions: a.Sessions, Notifier: notify, Policy: policy}
	verif := Verification{ADB: adb, Storage: a.storage, Cards: payments.StripeVerifier{}}

	sm := api.SessionMiddleware{Sessions: a.Sessions}
	rm := api.ReviewerMiddleware{Secret: []byte(a.Config.ReviewerJWTSecret)}

	r := mux.NewRouter()

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	// registration state machine
	apiCreate.Handle("/auth/register", sm.Attach(http.HandlerFunc(reg.InitiateHandler))).Methods("POST")
	apiCreate.Handle("/auth/register/verify-email", sm.Attach(http.HandlerFunc(reg.VerifyEmailHandler))).Methods("POST")
	apiCreate.Handle("/auth/register/verify-phone", sm.Attach(http.HandlerFunc(reg.VerifyPhoneHandler))).Methods("POST")
	apiCreate.Handle("/auth/register/resend-code", sm.Attach(http.HandlerFunc(reg.ResendCodeHandler))).Methods("POST")
	apiCreate.Handle("/auth/login", http.HandlerFunc(reg.LoginHandler)).Methods("POST")
	apiCreate.Handle("/auth/logout", http.HandlerFunc(reg.LogoutHandler)).Methods("POST")

	// social identity linker
	apiCreate.Handle("/auth/social/{provider}/callback", sm.Attach(http.HandlerFunc(soc.CallbackHandler))).Methods("POST")
	apiCreate.Handle("/auth/social/complete-profile", sm.Attach(http.HandlerFunc(soc.CompleteProfileHandler))).Methods("POST")

	// password recovery
	apiCreate.Handle("/auth/forgot-password", http.HandlerFunc(pw.ForgotPasswordHandler)).Methods("POST")
	apiCreate.Handle("/auth/reset-password", http.HandlerFunc(pw.ResetPasswordHandler)).Methods("POST")

	// profile and in-place contact changes
	apiCreate.Handle("/profile", sm.Require(http.HandlerFunc(prof.GetProfileHandler))).Methods("GET")
	apiCreate.Handle("/profile", sm.Require(http.HandlerFunc(prof.SaveProfileHandler))).Methods("PUT")
	apiCreate.Handle("/profile/change-request", sm.Require(http.HandlerFunc(prof.RequestChangeHandler))).Methods("POST")
	apiCreate.Handle("/profile/change-verify", sm.Require(http.HandlerFunc(prof.VerifyChangeHandler))).Methods("POST")

	// document verification
	apiCreate.Handle("/verification/payment-method", sm.Require(http.HandlerFunc(verif.MarkPaymentVerifiedHandler))).Methods("POST")
	apiCreate.Handle("/verification/{dimension}/document", sm.Require(http.HandlerFunc(verif.UploadDocumentHandler))).Methods("POST")
	apiCreate.Handle("/verification/{dimension}/document", sm.Require(http.HandlerFunc(verif.DeleteDocumentHandler))).Methods("DELETE")

	// reviewer decisions come from the review console, not the consumer app
	apiCreate.Handle("/admin/verification/{account_id}/{dimension}", rm.Require(http.HandlerFunc(verif.ReviewDecisionHandler))).Methods("PUT")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("tradelink-api has connected to the database")

	ctx, cancel := api.WithQueryTimeout(context.Background())
	defer cancel()
	if err := databases.NewAccountDatabase(a.dbHelper).EnsureIndexes(ctx); err != nil {
		zap.S().With(err).Error("failed to ensure account indexes")
		return err
	}
	if err := databases.NewPendingRegistrationDatabase(a.dbHelper).EnsureIndexes(ctx); err != nil {
		zap.S().With(err).Error("failed to ensure pending registration indexes")
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPass,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zap.S().With(err).Error("failed to connect to redis")
		return err
	}
	a.Sessions = sessions.NewStore(rdb, a.Config.Production())

	// initialize stripe
	if err := payments.Init(a.Config.StripeSecretKey); err != nil {
		return err
	}

	cld, err := storage.NewCloudinaryStorage(
		a.Config.CloudinaryCloudName,
		a.Config.CloudinaryAPIKey,
		a.Config.CloudinaryAPISecret,
	)
	if err != nil {
		zap.S().With(err).Error("failed to initialize document storage")
		return err
	}
	a.storage = cld

	a.Scheduler = scheduler.NewScheduler(
		databases.NewPendingRegistrationDatabase(a.dbHelper),
		databases.NewSocialAuthErrorDatabase(a.dbHelper),
	)
	a.Scheduler.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}

// normalizeEmail lower-cases and trims an email for use as the identity key.
func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(status)
	w.Write(b)
}
