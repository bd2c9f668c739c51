package lib

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsched "github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

func awsGetSdkClient() (*aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Printf("Error loading default config: %s\n", err.Error())
		return nil, err
	}
	iamRole := os.Getenv("AWS_IAM_ROLE_ARN")
	stsClient := sts.NewFromConfig(cfg)
	output, err := stsClient.AssumeRole(context.TODO(), &sts.AssumeRoleInput{
		RoleArn:         aws.String(iamRole),
		RoleSessionName: aws.String("spruce-api"),
	})
	if err != nil {
		log.Printf("Error configuring STS client: %s\n", err.Error())
		return nil, err
	}
	creds := output.Credentials
	cfg, err = config.LoadDefaultConfig(context.TODO(), config.WithCredentialsProvider(
		credentials.NewStaticCredentialsProvider(*creds.AccessKeyId, *creds.SecretAccessKey, *creds.SessionToken),
	))
	if err != nil {
		log.Printf("Error configuration: %s\n", err.Error())
		return nil, err
	}

	return &cfg, nil
}

func AWSGetSchedulerClient() *awsched.Client {
	cfg, _ := awsGetSdkClient()
	client := awsched.NewFromConfig(*cfg)

	return client
}

func AWSGetSQSClient() *sqs.Client {
	cfg, err := awsGetSdkClient()
	if err != nil {
		log.Printf("Failed to initialize SQS client: %s\n", err.Error())
		return nil
	}
	client := sqs.NewFromConfig(*cfg)
	return client
}

func AWSGetSNSClient() *sns.Client {
	cfg, err := awsGetSdkClient()
	if err != nil {
		log.Printf("Failed to initialize SNS client: %s\n", err.Error())
		return nil
	}
	client := sns.NewFromConfig(*cfg)
	return client
}

// GetTopicArn builds the ARN for a topic in the configured account.
func GetTopicArn(topic string) string {
	region := os.Getenv("AWS_REGION")
	account := os.Getenv("AWS_MEMBER_ID")
	return fmt.Sprintf("arn:aws:sns:%s:%s:%s", region, account, topic)
}

// SNSSubscribeQueue fans the topic into the queue. Idempotent on the
// SNS side, so it is safe to call on every boot.
func SNSSubscribeQueue(topic, qname string) {
	client := AWSGetSNSClient()
	if client == nil {
		return
	}
	region := os.Getenv("AWS_REGION")
	account := os.Getenv("AWS_MEMBER_ID")
	queueArn := fmt.Sprintf("arn:aws:sqs:%s:%s:%s", region, account, qname)
	output, err := client.Subscribe(context.Background(), &sns.SubscribeInput{
		Protocol: aws.String("sqs"),
		TopicArn: aws.String(GetTopicArn(topic)),
		Endpoint: aws.String(queueArn),
	})
	if err != nil {
		log.Printf("Error subscribing queue %s to topic %s: %s\n", qname, topic, err.Error())
		return
	}
	log.Printf("Subscribed to topic: %s\n", *output.SubscriptionArn)
}

func SQSDeleteMessage(c *sqs.Client, qurl *string, msg *sqsTypes.Message) {
	_, err := c.DeleteMessage(context.TODO(), &sqs.DeleteMessageInput{
		QueueUrl:      qurl,
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		log.Printf("Error deleting message from queue: %s\n", err.Error())
		return
	}
	log.Printf("Deleted message from queue: %s\n", *msg.MessageId)
}
