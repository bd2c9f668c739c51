package main

import (
	"log"
	"net/http"
	"spruce/src/controllers"
	"spruce/src/db"
	"spruce/src/middlewares"
	"spruce/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func userHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/notifications", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var rows []models.Notification
			if err := db.
				Model(&models.Notification{}).
				Where(&models.Notification{UserID: userId}).
				Order("created_at desc").
				Limit(100).
				Find(&rows).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": rows, "count": len(rows)})
		}).
		POST("/notifications/:id/read", func(ctx *gin.Context) {
			var params struct {
				ID string `uri:"id" binding:"required,uuid"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			res := db.
				Model(&models.Notification{}).
				Where("id = ? AND user_id = ?", uuid.MustParse(params.ID), userId).
				Update("read", true)
			if res.Error != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": res.Error.Error()})
				return
			}
			if res.RowsAffected == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.Status(http.StatusOK)
		}).
		POST("/fcm", func(ctx *gin.Context) {
			var body struct {
				Token string `json:"token" binding:"required"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			uid := ctx.GetString("uid")
			if err := controllers.RegisterDeviceToken(ctx, uid, body.Token); err != nil {
				log.Printf("[FCM] Error storing device token: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			ctx.Status(http.StatusOK)
		})

	payouts := g.Group("/payouts")
	payouts.Use(middlewares.RequireRole(models.ROLE_WORKER))
	payouts.
		POST("/onboarding", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			url, status, err := controllers.PayoutOnboardingLink(ctx, userId)
			if err != nil {
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(status, gin.H{"url": url})
		})
	return g
}
