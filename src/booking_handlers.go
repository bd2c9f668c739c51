package main

import (
	"net/http"
	"spruce/src/config"
	"spruce/src/db"
	"spruce/src/faults"
	"spruce/src/models"
	"spruce/src/saga"
	"spruce/src/types"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func actorFromRole(role string) types.Actor {
	switch role {
	case models.ROLE_WORKER:
		return types.ACTOR_WORKER
	case models.ROLE_ADMIN:
		return types.ACTOR_ADMIN
	default:
		return types.ACTOR_CUSTOMER
	}
}

func statusFromFault(err error) (int, gin.H) {
	switch {
	case faults.IsValidation(err):
		return http.StatusUnprocessableEntity, gin.H{"error": err.Error()}
	case faults.IsConflict(err):
		return http.StatusConflict, gin.H{"error": err.Error()}
	case faults.IsRollbackFailure(err):
		return http.StatusBadGateway, gin.H{"error": "payment could not be completed, support has been notified"}
	case faults.IsExternal(err):
		return http.StatusBadGateway, gin.H{"error": "payment could not be completed, please try again"}
	case err == faults.ErrNotFound:
		return http.StatusNotFound, gin.H{"error": "not found"}
	default:
		return http.StatusInternalServerError, gin.H{"error": err.Error()}
	}
}

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/bookings", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			role := ctx.GetString("role")
			db := db.GetDb()
			var bookings []models.Booking
			q := db.Model(&models.Booking{}).Preload("Address").Order("scheduled_at desc")
			if role == models.ROLE_WORKER {
				q = q.Where(&models.Booking{WorkerID: &userId})
			} else {
				q = q.Where(&models.Booking{CustomerID: userId})
			}
			if err := q.Find(&bookings).Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			var booking models.Booking
			ss := db.Session(&gorm.Session{PrepareStmt: true})
			if err := ss.
				Model(&models.Booking{}).
				Where(&models.Booking{ID: params.ID}).
				Preload("Address").
				Preload("Customer").
				Preload("Worker").
				First(&booking).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
				return
			}
			if !canViewBooking(ctx, &booking) {
				ctx.Status(http.StatusForbidden)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		GET("/bookings/:id/history", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Model(&models.Booking{}).
				Where(&models.Booking{ID: params.ID}).
				First(&booking).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
				return
			}
			if !canViewBooking(ctx, &booking) {
				ctx.Status(http.StatusForbidden)
				return
			}
			var updates []models.StatusUpdate
			if err := db.
				Model(&models.StatusUpdate{}).
				Where(&models.StatusUpdate{BookingID: params.ID}).
				Order("created_at asc").
				Find(&updates).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": updates, "count": len(updates)})
		}).
		POST("/bookings/checkout", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			scheduledAt, err := time.Parse(config.TIME_PARSE_FORMAT, body.ScheduledAt)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_at"})
				return
			}
			userId := ctx.GetUint("id")
			res, err := coordinator.CreateBookingWithPayment(ctx.Request.Context(), saga.CreateBookingInput{
				CustomerID:   userId,
				AddressID:    body.AddressID,
				ScheduledAt:  scheduledAt,
				DurationMins: body.DurationMins,
				Subtotal:     body.Subtotal,
				Tip:          body.Tip,
				Notes:        body.Notes,
				RequestID:    body.RequestID,
			})
			if err != nil {
				status, h := statusFromFault(err)
				ctx.JSON(status, h)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{
				"booking_id":     res.Booking.ID,
				"transaction_id": res.TransactionID,
				"data":           res.Booking,
			})
		}).
		PATCH("/bookings/:id/status", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.AdvanceStatusRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			actor := actorFromRole(ctx.GetString("role"))
			booking, upd, err := engine.ApplyTransition(
				ctx.Request.Context(),
				params.ID,
				types.BookingStatus(body.Status),
				actor,
				body.Notes,
			)
			if err != nil {
				status, h := statusFromFault(err)
				ctx.JSON(status, h)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking, "status_update": upd})
		}).
		POST("/bookings/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.CancelBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			actor := actorFromRole(ctx.GetString("role"))
			booking, err := engine.Cancel(ctx.Request.Context(), params.ID, actor, body.Reason)
			if err != nil {
				status, h := statusFromFault(err)
				ctx.JSON(status, h)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		})
	return g
}

func canViewBooking(ctx *gin.Context, b *models.Booking) bool {
	userId := ctx.GetUint("id")
	role := ctx.GetString("role")
	if role == models.ROLE_ADMIN {
		return true
	}
	if b.CustomerID == userId {
		return true
	}
	return b.WorkerID != nil && *b.WorkerID == userId
}
