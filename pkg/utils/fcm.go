package utils

import (
	"context"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

var fcmClient *messaging.Client

// InitFCM connects to Firebase Cloud Messaging. When no credentials are
// configured the client stays nil and SendNotification becomes a no-op,
// so local development works without a Firebase project.
func InitFCM(credentialsPath string) {
	if credentialsPath == "" {
		log.Warn().Msg("fcm: no credentials configured, push notifications disabled")
		return
	}

	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Error().Err(err).Msg("fcm: initializing firebase app")
		return
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("fcm: getting messaging client")
		return
	}

	fcmClient = client
	log.Info().Msg("fcm: firebase cloud messaging ready")
}

// SendNotification pushes one message to a device token.
func SendNotification(token, title, body string, data map[string]string) error {
	if fcmClient == nil || token == "" {
		return nil
	}

	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	if _, err := fcmClient.Send(context.Background(), message); err != nil {
		log.Error().Err(err).Msg("fcm: sending message")
		return err
	}
	return nil
}
