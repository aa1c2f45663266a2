package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zoobzio/clockz"

	"github.com/ryanhess/service-reminder/internal/common/errs"
	"github.com/ryanhess/service-reminder/internal/common/logger"
	"github.com/ryanhess/service-reminder/internal/schedule"
	"github.com/ryanhess/service-reminder/internal/sms"
	"github.com/ryanhess/service-reminder/internal/user"
	"github.com/ryanhess/service-reminder/internal/vehicle"
)

// UserStore 用户读写。
type UserStore interface {
	Create(ctx context.Context, u *user.User) error
	FindByID(ctx context.Context, id string) (*user.User, error)
	FindByPhone(ctx context.Context, phone string) (*user.User, error)
	List(ctx context.Context, offset, limit int) ([]user.User, int64, error)
}

// VehicleStore 车辆读写。
type VehicleStore interface {
	Create(ctx context.Context, v *vehicle.Vehicle) error
	FindByID(ctx context.Context, id string) (*vehicle.Vehicle, error)
	ListByUser(ctx context.Context, userID string) ([]vehicle.Vehicle, error)
	FindNeedingReading(ctx context.Context, userID string, today time.Time, staleDays int) (*vehicle.Vehicle, error)
}

// ItemStore 保养项目读写。
type ItemStore interface {
	Create(ctx context.Context, it *schedule.Item) error
	FindByID(ctx context.Context, id string) (*schedule.Item, error)
	ListByVehicle(ctx context.Context, vehicleID string) ([]schedule.Item, error)
}

// OdometerEngine 里程更新引擎，见 vehicle.Odometer。
type OdometerEngine interface {
	Update(ctx context.Context, clock clockz.Clock, vehicleID string, newODO float64) error
}

// CompletionEngine 保养完成引擎，见 schedule.Completion。
type CompletionEngine interface {
	Complete(ctx context.Context, clock clockz.Clock, itemID string, doneMiles float64) error
}

// MaintenanceRunner 手动触发一轮每日维护。
type MaintenanceRunner interface {
	RunOnce(ctx context.Context) (bool, error)
}

// DueNotifier 对所有到期项目发提醒。
type DueNotifier interface {
	NotifyAllDueServices(ctx context.Context, clock clockz.Clock) ([]string, error)
}

// Handler 汇聚所有 HTTP 入口：Twilio 短信 webhook 和 JSON API。
type Handler struct {
	users      UserStore
	vehicles   VehicleStore
	items      ItemStore
	odometer   OdometerEngine
	completion CompletionEngine
	runner     MaintenanceRunner
	notifier   DueNotifier
	clock      clockz.Clock
	staleDays  int
	log        logger.Logger
}

func NewHandler(users UserStore, vehicles VehicleStore, items ItemStore,
	odometer OdometerEngine, completion CompletionEngine,
	runner MaintenanceRunner, notifier DueNotifier,
	clock clockz.Clock, staleDays int, log logger.Logger) *Handler {
	if clock == nil {
		clock = clockz.RealClock
	}
	if staleDays <= 0 {
		staleDays = 7
	}
	return &Handler{
		users: users, vehicles: vehicles, items: items,
		odometer: odometer, completion: completion,
		runner: runner, notifier: notifier,
		clock: clock, staleDays: staleDays, log: log,
	}
}

// RegisterRoutes 挂载全部路由。
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.home)
	r.GET("/healthz", h.health)
	r.POST("/receive_sms", h.receiveSMS)

	api := r.Group("/api")
	{
		api.POST("/users", h.createUser)
		api.GET("/users", h.listUsers)
		api.GET("/users/:id", h.getUser)
		api.GET("/users/:id/vehicles", h.listUserVehicles)

		api.POST("/vehicles", h.createVehicle)
		api.GET("/vehicles/:id", h.getVehicle)
		api.POST("/vehicles/:id/odometer", h.updateOdometer)
		api.GET("/vehicles/:id/service-items", h.listVehicleItems)

		api.POST("/service-items", h.createItem)
		api.POST("/service-items/:id/complete", h.completeItem)

		api.POST("/maintenance/run", h.runMaintenance)
	}
}

func (h *Handler) home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"service": "service-reminder"})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// receiveSMS 处理 Twilio 入站短信回调。无论结果如何都回 200 + TwiML 文档，
// 错误通过短信正文告知用户。校验顺序与回复文案保持既有线上行为。
func (h *Handler) receiveSMS(c *gin.Context) {
	from := c.PostForm("From")
	body := c.PostForm("Body")

	reply := h.handleReading(c.Request.Context(), from, body)

	doc, err := sms.Reply(reply)
	if err != nil {
		h.logErr("twiml encode failed: %v", err)
		c.String(http.StatusInternalServerError, "")
		return
	}
	c.Data(http.StatusOK, "text/xml", []byte(doc))
}

func (h *Handler) handleReading(ctx context.Context, from, body string) string {
	const errPrefix = "Error updating Odometer: "

	u, err := h.users.FindByPhone(ctx, from)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errPrefix + "your phone number is not associated with Service Reminders."
		}
		h.logErr("find user by phone: %v", err)
		return errPrefix + "something went wrong, please try again later."
	}

	v, err := h.vehicles.FindNeedingReading(ctx, u.ID, h.clock.Now(), h.staleDays)
	if err != nil {
		if errors.Is(err, errs.ErrNoEligibleVehicle) {
			return errPrefix + "none of your vehicles need an odometer update."
		}
		h.logErr("find vehicle needing reading: %v", err)
		return errPrefix + "something went wrong, please try again later."
	}

	odo, err := vehicle.ParseReading(body)
	if err != nil {
		return errPrefix + "message is not a number"
	}
	if odo < 0 {
		return errPrefix + "can't be negative."
	}
	if odo > vehicle.MaxMiles {
		return errPrefix + "number can't be more than " +
			strconv.FormatFloat(vehicle.MaxMiles, 'f', -1, 64)
	}

	if err := h.odometer.Update(ctx, h.clock, v.ID, odo); err != nil {
		if errors.Is(err, errs.ErrDecreasingValue) {
			return errPrefix + "must be more than your vehicle's last recorded miles."
		}
		h.logErr("update odometer: %v", err)
		return errPrefix + "something went wrong, please try again later."
	}

	return fmt.Sprintf("Successfully updated the odometer for %s.", v.DisplayName())
}

type createUserReq struct {
	Username string `json:"username" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u := &user.User{ID: uuid.NewString(), Username: req.Username, Phone: req.Phone}
	if err := h.users.Create(c.Request.Context(), u); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) listUsers(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	users, total, err := h.users.List(c.Request.Context(), offset, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": total})
}

func (h *Handler) getUser(c *gin.Context) {
	u, err := h.users.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) listUserVehicles(c *gin.Context) {
	vs, err := h.vehicles.ListByUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": vs})
}

type createVehicleReq struct {
	UserID   string  `json:"user_id" binding:"required"`
	Nickname *string `json:"nickname"`
	Make     string  `json:"make" binding:"required"`
	Model    string  `json:"model" binding:"required"`
	Year     int     `json:"year" binding:"required"`
}

func (h *Handler) createVehicle(c *gin.Context) {
	var req createVehicleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.users.FindByID(c.Request.Context(), req.UserID); err != nil {
		h.writeError(c, err)
		return
	}
	v := &vehicle.Vehicle{
		ID:       uuid.NewString(),
		UserID:   req.UserID,
		Nickname: req.Nickname,
		Make:     req.Make,
		Model:    req.Model,
		Year:     req.Year,
	}
	if err := h.vehicles.Create(c.Request.Context(), v); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *Handler) getVehicle(c *gin.Context) {
	v, err := h.vehicles.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Miles 用指针以区分“没传”和合法的 0 英里读数。
type odometerReq struct {
	Miles *float64 `json:"miles" binding:"required"`
}

func (h *Handler) updateOdometer(c *gin.Context) {
	var req odometerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.odometer.Update(c.Request.Context(), h.clock, id, *req.Miles); err != nil {
		h.writeError(c, err)
		return
	}
	v, err := h.vehicles.FindByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) listVehicleItems(c *gin.Context) {
	its, err := h.items.ListByVehicle(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"service_items": its})
}

type createItemReq struct {
	VehicleID     string  `json:"vehicle_id" binding:"required"`
	Description   string  `json:"description" binding:"required"`
	IntervalMiles float64 `json:"interval_miles" binding:"required,gt=0"`
	LastDoneMiles float64 `json:"last_done_miles"`
}

func (h *Handler) createItem(c *gin.Context) {
	var req createItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.vehicles.FindByID(c.Request.Context(), req.VehicleID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	it := &schedule.Item{
		ID:            uuid.NewString(),
		VehicleID:     v.ID,
		UserID:        v.UserID,
		Description:   req.Description,
		IntervalMiles: req.IntervalMiles,
		LastDoneMiles: req.LastDoneMiles,
		DueAtMiles:    req.LastDoneMiles + req.IntervalMiles,
	}
	if err := h.items.Create(c.Request.Context(), it); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

// Miles 同样用指针：0 英里处完成保养是合法输入。
type completeItemReq struct {
	Miles *float64 `json:"miles" binding:"required"`
}

func (h *Handler) completeItem(c *gin.Context) {
	var req completeItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.completion.Complete(c.Request.Context(), h.clock, id, *req.Miles); err != nil {
		h.writeError(c, err)
		return
	}
	it, err := h.items.FindByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// runMaintenance 手动触发一轮每日维护并立即外发到期提醒。
// 正常情况下由 daily-maint 定时跑，这个入口留给运维补跑。
func (h *Handler) runMaintenance(c *gin.Context) {
	started, err := h.runner.RunOnce(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !started {
		c.JSON(http.StatusConflict, gin.H{"error": "maintenance already running"})
		return
	}
	var notified []string
	if h.notifier != nil {
		notified, err = h.notifier.NotifyAllDueServices(c.Request.Context(), h.clock)
		if err != nil {
			h.writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed", "notified_items": notified})
}

// writeError 把领域错误映射成 HTTP 状态码。
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrInvalidInput), errors.Is(err, errs.ErrOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrDecreasingValue):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errs.IsUserError(err):
		// 其余校验类错误（如 ErrNoEligibleVehicle）照原文回显，不按内部错误处理。
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logErr("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *Handler) logErr(format string, args ...interface{}) {
	if h.log != nil {
		h.log.Errorf(format, args...)
	}
}
