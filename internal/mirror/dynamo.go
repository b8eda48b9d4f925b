package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/bookbazaar/bookbazaar/internal/domain"
)

// SystemSeller is the seller attribute written for system-owned books and
// their orders, standing in for the absent foreign key.
const SystemSeller = "system"

type Tables struct {
	Books  string
	Users  string
	Orders string
}

// Dynamo mirrors entities into one DynamoDB table per entity type, partition
// key "id". Monetary and stock fields travel as DynamoDB numbers, which are
// exact decimals.
type Dynamo struct {
	client *dynamodb.Client
	tables Tables
}

// NewDynamo builds a mirror against DynamoDB in region. A non-empty endpoint
// overrides the AWS endpoint, which is how local DynamoDB instances are
// reached in development.
func NewDynamo(ctx context.Context, region, endpoint string, tables Tables) (*Dynamo, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &Dynamo{client: client, tables: tables}, nil
}

type bookItem struct {
	ID         string `dynamodbav:"id"`
	Title      string `dynamodbav:"title"`
	Author     string `dynamodbav:"author"`
	PriceCents int64  `dynamodbav:"price_cents"`
	Stock      int    `dynamodbav:"stock"`
	SellerID   string `dynamodbav:"seller_id"`
	ImageURL   string `dynamodbav:"image_url"`
}

type userItem struct {
	ID           string `dynamodbav:"id"`
	Username     string `dynamodbav:"username"`
	Email        string `dynamodbav:"email"`
	Role         string `dynamodbav:"role"`
	PasswordHash string `dynamodbav:"password_hash"`
}

type orderItem struct {
	ID         string `dynamodbav:"id"`
	UserID     string `dynamodbav:"user_id"`
	BookID     string `dynamodbav:"book_id"`
	SellerID   string `dynamodbav:"seller_id"`
	Quantity   int    `dynamodbav:"quantity"`
	TotalCents int64  `dynamodbav:"total_cents"`
	Status     string `dynamodbav:"status"`
	OrderDate  string `dynamodbav:"order_date"`
}

func (d *Dynamo) PutBook(ctx context.Context, book *domain.Book) error {
	seller := SystemSeller
	if book.SellerID != nil {
		seller = *book.SellerID
	}
	return d.put(ctx, d.tables.Books, bookItem{
		ID:         book.ID,
		Title:      book.Title,
		Author:     book.Author,
		PriceCents: book.PriceCents,
		Stock:      book.Stock,
		SellerID:   seller,
		ImageURL:   book.ImageURL,
	})
}

func (d *Dynamo) PutUser(ctx context.Context, user *domain.User) error {
	return d.put(ctx, d.tables.Users, userItem{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Role:         string(user.Role),
		PasswordHash: user.PasswordHash,
	})
}

func (d *Dynamo) PutOrder(ctx context.Context, order *domain.Order, sellerID string) error {
	if sellerID == "" {
		sellerID = SystemSeller
	}
	return d.put(ctx, d.tables.Orders, orderItem{
		ID:         order.ID,
		UserID:     order.UserID,
		BookID:     order.BookID,
		SellerID:   sellerID,
		Quantity:   order.Quantity,
		TotalCents: order.TotalCents,
		Status:     string(order.Status),
		OrderDate:  order.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (d *Dynamo) put(ctx context.Context, table string, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal mirror item: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      av,
	})
	return err
}

// OrdersBySeller scans the orders table for a seller's sales. A filtered
// scan is fine here: the mirror is non-authoritative and low-cardinality,
// and this query only serves demo tooling.
func (d *Dynamo) OrdersBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	out, err := d.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(d.tables.Orders),
		FilterExpression: aws.String("seller_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: sellerID},
		},
	})
	if err != nil {
		return nil, err
	}

	var items []orderItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshal mirror orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(items))
	for _, it := range items {
		created, _ := time.Parse(time.RFC3339, it.OrderDate)
		orders = append(orders, domain.Order{
			ID:         it.ID,
			UserID:     it.UserID,
			BookID:     it.BookID,
			Quantity:   it.Quantity,
			TotalCents: it.TotalCents,
			Status:     domain.OrderStatus(it.Status),
			CreatedAt:  created,
		})
	}
	return orders, nil
}

// CreateTables provisions the three mirror tables, ignoring tables that
// already exist, and waits until they are active.
func (d *Dynamo) CreateTables(ctx context.Context) error {
	for _, table := range []string{d.tables.Books, d.tables.Users, d.tables.Orders} {
		if err := d.createTable(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dynamo) createTable(ctx context.Context, name string) error {
	_, err := d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		},
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("create table %s: %w", name, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(d.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(name),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", name, err)
	}
	return nil
}

// Verify checks connectivity by scanning a single item from each table.
func (d *Dynamo) Verify(ctx context.Context) error {
	for _, table := range []string{d.tables.Books, d.tables.Users, d.tables.Orders} {
		_, err := d.client.Scan(ctx, &dynamodb.ScanInput{
			TableName: aws.String(table),
			Limit:     aws.Int32(1),
		})
		if err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
	}
	return nil
}
