package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"regexp"
	"spruce/src/boot"
	"spruce/src/common"
	"spruce/src/config"
	"spruce/src/controllers"
	"spruce/src/db"
	"spruce/src/middlewares"
	"spruce/src/models"
	"spruce/src/notify"
	"spruce/src/payments"
	"spruce/src/saga"
	"spruce/src/store"
	"spruce/src/types"
	"spruce/src/workflow"
	"strconv"
	"time"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"
)

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	UID      string `json:"uid"`
	jwt.RegisteredClaims
}

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

const (
	apiPrefix string = "/api/v1"
)

// Booking core singletons, assembled in main and swapped for fakes in
// tests.
var (
	engine      *workflow.Engine
	coordinator *saga.Coordinator
)

var bookableDateValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	if ok {
		today := time.Now()
		if today.After(datetime) {
			return false
		}
	}
	return true
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		mm := os.Getenv("MAINTENANCE_MODE")
		atoi, err := strconv.ParseBool(mm)
		if err == nil && atoi {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func generateJWT(user *models.User) (string, error) {
	claims := Claims{
		Username: user.Email,
		Role:     user.Role,
		UID:      user.UID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(int(user.ID)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString(jwtKey)
}

func guestAuthRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	guest := apiv1.Group("/auth")
	guest.
		POST("/register", func(ctx *gin.Context) {
			user, status, err := controllers.RegisterUser(ctx)
			if err != nil {
				log.Printf("[RegisterUser] error: %s\n", err.Error())
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			token, err := generateJWT(user)
			if err != nil {
				log.Printf("[RegisterUser] error signing token: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			ctx.JSON(status, gin.H{"uid": user.UID, "token": token})
		}).
		POST("/login", func(ctx *gin.Context) {
			var body struct {
				Email string `json:"email" binding:"required,email"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			gdb := db.GetDb()
			var user models.User
			if err := gdb.
				Model(&models.User{}).
				Where(&models.User{Email: body.Email}).
				First(&user).
				Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			if !user.Active {
				ctx.Status(http.StatusForbidden)
				return
			}
			token, err := generateJWT(&user)
			if err != nil {
				log.Printf("[AuthLogin] error signing token: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"token": token})
		})
	return guest
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", bookableDateValidatorFunc)
	}
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	f, _ := os.Create(apiLogs)
	gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func corsMiddleware(router *gin.Engine) {
	apiEnv := os.Getenv("API_ENV")
	appHost := os.Getenv("APP_HOST")
	if apiEnv == string(types.Local) {
		router.Use(cors.Default())
		return
	}
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
	cc.AllowOriginFunc = func(origin string) bool {
		match, _ := regexp.MatchString(appHost, origin)
		if match {
			return true
		}
		match, _ = regexp.MatchString("app:mobile", origin)
		return match
	}
	cc.AllowCredentials = true
	cc.AllowAllOrigins = false
	router.Use(cors.New(cc))
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	boot.InitDb()

	st := store.NewGormStore(db.GetDb())
	gateway := payments.NewStripeGateway()
	notifier := notify.NewDispatcher()
	engine = workflow.NewEngine(st, gateway, notifier, workflow.DefaultRules())
	coordinator = saga.NewCoordinator(st, gateway, engine, notifier)

	boot.InitScheduler()
	defer boot.StopScheduler()
	go boot.RecoverQueuedJobs(engine)
	go common.StartConsumers(engine, st)
	common.StartTransactionMonitor(st, notifier)

	router := setupRouter()
	corsMiddleware(router)
	registerValidators()
	router = maintenanceModeMiddleware(router)

	guestAuthRoutes(router)
	stripeWebhookRoute(router)

	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	{
		bookingHandlers(authorized)
		jobHandlers(authorized)
		transactionHandlers(authorized)
		userHandlers(authorized)
		adminHandlers(authorized)
	}

	router.Run(":8080")
}
