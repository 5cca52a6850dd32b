package lib

import (
	"fmt"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsdynamodb"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambdaeventsources"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssns"
	"github.com/aws/aws-cdk-go/awscdklambdagoalpha/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

type BackendStackProps struct {
	awscdk.StackProps
}

// envOr returns the deploy-time environment value or a default.
func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func NewBackendStack(scope constructs.Construct, id string, props *BackendStackProps) awscdk.Stack {
	var sprops awscdk.StackProps
	if props != nil {
		sprops = props.StackProps
	}
	stack := awscdk.NewStack(scope, &id, &sprops)

	// Topic the web application publishes submission events to
	submissionsTopic := awssns.NewTopic(stack, jsii.String("SubmissionsTopic"), &awssns.TopicProps{
		TopicName: jsii.String("submissions"),
	})

	// Status records, one per submission
	statusTable := awsdynamodb.NewTable(stack, jsii.String("EmailStatus"), &awsdynamodb.TableProps{
		PartitionKey: &awsdynamodb.Attribute{
			Name: jsii.String("Id"),
			Type: awsdynamodb.AttributeType_STRING,
		},
		BillingMode: awsdynamodb.BillingMode_PAY_PER_REQUEST,
		TableName:   jsii.String("EmailStatus"),
	})

	// Lambda execution role
	lambdaRole := awsiam.NewRole(stack, jsii.String("LambdaExecutionRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("lambda.amazonaws.com"), nil),
		ManagedPolicies: &[]awsiam.IManagedPolicy{
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("service-role/AWSLambdaBasicExecutionRole")),
		},
	})

	statusTable.GrantWriteData(lambdaRole)

	lambdaRole.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions:   jsii.Strings("ses:SendEmail", "ses:SendRawEmail"),
		Resources: jsii.Strings("*"),
	}))

	storageProvider := envOr("STORAGE_PROVIDER", "gcs")
	bucketName := envOr("BUCKET_NAME", "")
	if storageProvider == "s3" && bucketName != "" {
		lambdaRole.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
			Actions:   jsii.Strings("s3:PutObject"),
			Resources: jsii.Strings(fmt.Sprintf("arn:aws:s3:::%s/*", bucketName)),
		}))
	}

	processLambda := awscdklambdagoalpha.NewGoFunction(stack, jsii.String("ProcessSubmissionFunction"), &awscdklambdagoalpha.GoFunctionProps{
		Runtime:    awslambda.Runtime_PROVIDED_AL2(),
		Entry:      jsii.String("lambda/process-submission"),
		Role:       lambdaRole,
		Timeout:    awscdk.Duration_Seconds(jsii.Number(120)),
		MemorySize: jsii.Number(512),
		Bundling: &awscdklambdagoalpha.BundlingOptions{
			Environment: &map[string]*string{
				"GOOS":   jsii.String("linux"),
				"GOARCH": jsii.String("amd64"),
			},
		},
		Environment: &map[string]*string{
			"SENDER_EMAIL":       jsii.String(os.Getenv("SENDER_EMAIL")),
			"EMAIL_REGION":       jsii.String(envOr("EMAIL_REGION", "us-east-1")),
			"EMAIL_SIGNATURE":    jsii.String(envOr("EMAIL_SIGNATURE", "Course Staff")),
			"TABLE_NAME":         statusTable.TableName(),
			"STORAGE_PROVIDER":   jsii.String(storageProvider),
			"BUCKET_NAME":        jsii.String(bucketName),
			"GOOGLE_CREDENTIALS": jsii.String(os.Getenv("GOOGLE_CREDENTIALS")),
			"LOG_LEVEL":          jsii.String(envOr("LOG_LEVEL", "info")),
		},
	})

	processLambda.AddEventSource(awslambdaeventsources.NewSnsEventSource(submissionsTopic, nil))

	// Stack Outputs
	awscdk.NewCfnOutput(stack, jsii.String("SubmissionsTopicArn"), &awscdk.CfnOutputProps{
		Value: submissionsTopic.TopicArn(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("StatusTableName"), &awscdk.CfnOutputProps{
		Value: statusTable.TableName(),
	})

	return stack
}
