package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"spruce/src/db"
	"spruce/src/lib"
	"spruce/src/models"
	"spruce/src/types"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

// RegisterUser creates the platform user plus its processor-side
// counterpart: customers get a customer record for payment methods,
// workers get an express connected account for payouts.
func RegisterUser(ctx *gin.Context) (*models.User, int, error) {
	var body types.RegisterUserRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	role := body.Role
	if role == "" {
		role = models.ROLE_CUSTOMER
	}
	if role != models.ROLE_CUSTOMER && role != models.ROLE_WORKER {
		return nil, http.StatusBadRequest, errors.New("unsupported role")
	}

	gdb := db.GetDb()
	user := models.User{
		Email:  body.Email,
		Name:   body.Name,
		Role:   role,
		UID:    uuid.NewString(),
		Active: true,
	}
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where(&models.User{Email: body.Email}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errors.New("email already registered")
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		sc := lib.GetStripeClient()
		switch role {
		case models.ROLE_CUSTOMER:
			cus, err := sc.V1Customers.Create(context.Background(), &stripe.CustomerCreateParams{
				Email:    stripe.String(user.Email),
				Name:     stripe.String(user.Name),
				Metadata: map[string]string{"userId": fmt.Sprintf("%d", user.ID)},
			})
			if err != nil {
				log.Printf("Error creating customer record: %s\n", err.Error())
				return errors.New("error creating customer record")
			}
			return tx.Model(&models.User{}).Where("id = ?", user.ID).Update("stripe_customer_id", cus.ID).Error
		case models.ROLE_WORKER:
			acc, err := sc.V1Accounts.Create(context.Background(), &stripe.AccountCreateParams{
				Type:     stripe.String("express"),
				Email:    stripe.String(user.Email),
				Metadata: map[string]string{"userId": fmt.Sprintf("%d", user.ID)},
				Capabilities: &stripe.AccountCreateCapabilitiesParams{
					Transfers: &stripe.AccountCreateCapabilitiesTransfersParams{
						Requested: stripe.Bool(true),
					},
				},
			})
			if err != nil {
				log.Printf("Error creating payout account: %s\n", err.Error())
				return errors.New("error creating payout account")
			}
			return tx.Model(&models.User{}).Where("id = ?", user.ID).Update("stripe_account_id", acc.ID).Error
		}
		return nil
	})
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	return &user, http.StatusCreated, nil
}

// PayoutOnboardingLink returns a fresh hosted-onboarding URL for a
// worker's connected account. Claimability stays off until the processor
// reports payouts enabled through the account webhook.
func PayoutOnboardingLink(ctx *gin.Context, userID uint) (string, int, error) {
	gdb := db.GetDb()
	var user models.User
	if err := gdb.Model(&models.User{}).Where(&models.User{ID: userID}).First(&user).Error; err != nil {
		return "", http.StatusNotFound, err
	}
	if user.Role != models.ROLE_WORKER || user.StripeAccountId == nil {
		return "", http.StatusBadRequest, errors.New("user has no payout account")
	}
	sc := lib.GetStripeClient()
	accLink, err := sc.V1AccountLinks.Create(context.Background(), &stripe.AccountLinkCreateParams{
		Account:    user.StripeAccountId,
		Type:       stripe.String("account_onboarding"),
		ReturnURL:  stripe.String(fmt.Sprint(os.Getenv("APP_HOST"), "/worker/payouts")),
		RefreshURL: stripe.String(fmt.Sprint(os.Getenv("APP_HOST"), "/callback/account/refresh")),
	})
	if err != nil {
		log.Printf("Error creating onboarding link: %s\n", err.Error())
		return "", http.StatusBadGateway, errors.New("error creating onboarding link")
	}
	return accLink.URL, http.StatusOK, nil
}

// RegisterDeviceToken stores the mobile push token so status changes can
// reach the device.
func RegisterDeviceToken(ctx *gin.Context, uid, token string) error {
	rd := lib.GetRedisClient()
	if rd == nil {
		return errors.New("token store unavailable")
	}
	key := fmt.Sprintf("%s:fcm", uid)
	if _, err := rd.JSONSet(context.Background(), key, "$", &map[string]any{
		"token":      token,
		"updated_at": time.Now().UnixMilli(),
	}).Result(); err != nil {
		return err
	}
	rd.Expire(context.Background(), key, 90*24*time.Hour)
	return nil
}
