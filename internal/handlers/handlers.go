package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"dormhub/api/internal/config"
	"dormhub/api/internal/events"
	"dormhub/api/internal/middleware"
	"dormhub/api/internal/models"
	"dormhub/api/internal/repository"
	"dormhub/api/internal/service"
	"dormhub/api/internal/storage"
)

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	authService  *service.AuthService
	db           *pgxpool.Pool
	cache        *redis.Client
	store        *storage.ObjectStore
	profiles     *repository.ProfileRepository
	sessions     *repository.SessionRepository
	notices      *repository.NoticeRepository
	applications *repository.ApplicationRepository
	laundry      *repository.LaundryRepository
	points       *repository.PointsRepository
	alarms       *repository.AlarmRepository
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, bus events.Publisher, cfg *config.AppConfig) HandlerSet {
	profileRepo := repository.NewProfileRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	auth := service.NewAuthService(profileRepo, sessionRepo, bus, cfg, log)

	return HandlerSet{
		log:          log,
		cfg:          cfg,
		authService:  auth,
		db:           db,
		cache:        cache,
		store:        store,
		profiles:     profileRepo,
		sessions:     sessionRepo,
		notices:      repository.NewNoticeRepository(db),
		applications: repository.NewApplicationRepository(db),
		laundry:      repository.NewLaundryRepository(db),
		points:       repository.NewPointsRepository(db),
		alarms:       repository.NewAlarmRepository(db),
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout)

	authed := v1.Group("")
	authed.Use(middleware.Auth(h.cfg, h.profiles, h.sessions))

	authed.GET("/auth/me", h.Me)
	authed.GET("/auth/session", h.CurrentSession)
	authed.GET("/auth/sessions", h.ListSessions)
	authed.DELETE("/auth/sessions/:deviceId", h.RevokeSession)

	authed.GET("/profiles/:id", h.GetProfile)
	authed.PUT("/profiles/me/info", h.UpdateMyInfo)
	authed.POST("/profiles/me/avatar", h.UploadAvatar)

	authed.GET("/notices", h.ListNotices)
	authed.GET("/notices/:id", h.GetNotice)

	authed.POST("/applications", h.SubmitApplication)
	authed.GET("/applications", h.ListMyApplications)

	authed.GET("/laundry", h.ListLaundryDay)
	authed.POST("/laundry", h.ReserveLaundry)
	authed.DELETE("/laundry/:id", h.CancelLaundry)

	authed.GET("/points", h.ListMyPoints)

	authed.GET("/alarms", h.ListMyAlarms)
	authed.POST("/alarms/:id/read", h.MarkAlarmRead)
	authed.POST("/alarms/read-all", h.MarkAllAlarmsRead)

	admin := v1.Group("/admin")
	admin.Use(
		middleware.Auth(h.cfg, h.profiles, h.sessions),
		middleware.RequireRoles(models.UserRoleAdmin),
	)
	admin.GET("/students", h.AdminListStudents)
	admin.POST("/notices", h.AdminCreateNotice)
	admin.PUT("/notices/:id", h.AdminUpdateNotice)
	admin.DELETE("/notices/:id", h.AdminDeleteNotice)
	admin.GET("/applications", h.AdminListApplications)
	admin.POST("/applications/:id/decide", h.AdminDecideApplication)
	admin.POST("/points", h.AdminCreatePointEntry)
	admin.POST("/alarms/broadcast", h.AdminBroadcastAlarm)
}

func currentProfile(c *gin.Context) (models.Profile, bool) {
	profileVal, exists := c.Get("current_profile")
	if !exists {
		return models.Profile{}, false
	}
	profile, ok := profileVal.(models.Profile)
	return profile, ok
}
