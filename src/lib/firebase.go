package lib

import (
	"context"
	"log"
	"os"
	"path"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

var innerApp *firebase.App
var innerMessaging *messaging.Client

func getOpts() *option.ClientOption {
	secretsPath := os.Getenv("SECRETS_DIR")
	opt := option.WithCredentialsFile(path.Join(secretsPath, "admin-sdk-credentials.json"))
	return &opt
}

func GetFirebaseMessaging() (*messaging.Client, error) {
	if innerMessaging != nil {
		return innerMessaging, nil
	}
	opt := getOpts()
	if innerApp == nil {
		app, err := firebase.NewApp(context.Background(), nil, *opt)
		if err != nil {
			log.Fatalf("error initializing app: %v\n", err.Error())
		}
		innerApp = app
	}

	msg, err := innerApp.Messaging(context.Background())
	if err != nil {
		log.Fatalf("error initializing FCM: %v\n", err.Error())
	}
	innerMessaging = msg
	return msg, nil
}
