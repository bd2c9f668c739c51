package main

import (
	"net/http"
	"spruce/src/db"
	"spruce/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func transactionHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/transactions/:id", func(ctx *gin.Context) {
			var params struct {
				ID string `uri:"id" binding:"required,uuid"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			id := uuid.MustParse(params.ID)
			db := db.GetDb()
			var tr models.Transaction
			if err := db.
				Model(&models.Transaction{}).
				Where("id = ?", id).
				Preload("Booking").
				First(&tr).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
				return
			}
			if tr.Booking != nil && !canViewBooking(ctx, tr.Booking) {
				ctx.Status(http.StatusForbidden)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tr})
		}).
		POST("/transactions/:id/confirm", func(ctx *gin.Context) {
			var params struct {
				ID string `uri:"id" binding:"required,uuid"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			id := uuid.MustParse(params.ID)
			tr, err := coordinator.ConfirmTransaction(ctx.Request.Context(), id)
			if err != nil {
				status, h := statusFromFault(err)
				ctx.JSON(status, h)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tr})
		})
	return g
}
