//go:build integration

package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/negotiation/internal/auth"
	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/utils"
)

const (
	testAppBinary      = "./negotiation_test_app"
	testAppPort        = "8089"
	testServiceApiPort = "8091"
	testAppURL         = "http://localhost:" + testAppPort
	testServiceApiURL  = "http://localhost:" + testServiceApiPort
	testJwtSecret      = "integration-test-secret"
	startupTimeout     = 15 * time.Second
	pingEndpoint       = testAppURL + "/v1/ping"
)

var (
	buyerID   = utils.NewSixID()
	sellerID  = utils.NewSixID()
	productID = utils.NewSixID()
	variantID = utils.NewSixID()

	sellerPhone = "923007654321"
)

// TestMain builds the binary, seeds accounts and a product, and runs the
// application in "all" mode with queued message delivery.
func TestMain(m *testing.M) {
	defer func() {
		_ = os.Remove(testAppBinary)
	}()

	godotenv.Load()
	buildCmd := exec.Command("go", "build", "-o", testAppBinary, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		log.Printf("Failed to build application: %v\nOutput:\n%s", err, string(out))
		os.Exit(1)
	}

	if err := seedTestData(); err != nil {
		log.Printf("Failed to seed test data: %v", err)
		os.Exit(1)
	}
	defer cleanupTestData()

	appCmd := exec.Command(testAppBinary, "-m", "all")
	appCmd.Env = append(os.Environ(),
		"API_PORT="+testAppPort,
		"SERVICE_API_PORT="+testServiceApiPort,
		"JWT_SECRET="+testJwtSecret,
		"GIN_MODE=release",
		"MOCK_SERVICES=true",
		"MESSAGING_VIA_QUEUE=true",
		"SIDE_EFFECTS_ASYNC=false",
		"EVENT_BUS=redis",
		"RATE_LIMIT_BUCKET_SIZE=100",
		"RATE_LIMIT_REFILL_RATE=100",
	)
	appCmd.Stderr = os.Stderr
	appCmd.Stdout = os.Stdout
	if err := appCmd.Start(); err != nil {
		log.Printf("Failed to start application: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := appCmd.Process.Signal(syscall.SIGTERM); err != nil {
			_ = appCmd.Process.Kill()
			return
		}
		_, _ = appCmd.Process.Wait()
	}()

	startTime := time.Now()
	ready := false
	for time.Since(startTime) < startupTimeout {
		resp, err := http.Get(pingEndpoint)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK && string(body) == "pong" {
				ready = true
				break
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	if !ready {
		log.Printf("Application failed to start within %v", startupTimeout)
		return
	}

	exitCode := m.Run()
	log.Printf("Integration tests finished with exit code %d.", exitCode)
}

func seedTestData() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(os.Getenv("MONGO_URI")))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB for seeding: %w", err)
	}
	defer client.Disconnect(ctx)
	db := client.Database(os.Getenv("MONGO_DB_NAME"))

	accounts := []interface{}{
		models.Account{Base: models.NewBase(), UserID: buyerID, Name: "Buyer", ContactNumber: "0300 1234567"},
		models.Account{Base: models.NewBase(), UserID: sellerID, Name: "Seller", ContactNumber: "0300-7654321"},
	}
	if _, err := db.Collection("accounts").InsertMany(ctx, accounts); err != nil {
		return fmt.Errorf("failed to seed accounts: %w", err)
	}
	if _, err := db.Collection("products").InsertOne(ctx, models.Product{ID: productID, Title: "Blue Kurta", Slug: "blue-kurta"}); err != nil {
		return fmt.Errorf("failed to seed product: %w", err)
	}
	return nil
}

func cleanupTestData() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(os.Getenv("MONGO_URI")))
	if err != nil {
		log.Printf("Failed to connect to MongoDB for cleanup: %v", err)
		return
	}
	defer client.Disconnect(ctx)
	db := client.Database(os.Getenv("MONGO_DB_NAME"))

	parties := bson.M{"$in": []utils.SixID{buyerID, sellerID}}
	_, _ = db.Collection("accounts").DeleteMany(ctx, bson.M{"userId": parties})
	_, _ = db.Collection("products").DeleteOne(ctx, bson.M{"_id": productID})
	_, _ = db.Collection("negotiations").DeleteMany(ctx, bson.M{"productId": productID})
	_, _ = db.Collection("notifications").DeleteMany(ctx, bson.M{"to": parties})
}

func tokenFor(t *testing.T, party utils.SixID) string {
	t.Helper()
	token, err := auth.GenerateJWT(party, testJwtSecret, time.Hour)
	require.NoError(t, err)
	return token
}

// callJsonApi posts one JSON API call and returns the decoded response.
func callJsonApi(t *testing.T, token, method string, arg interface{}) map[string]interface{} {
	t.Helper()
	payload := map[string]interface{}{"method": method}
	if arg != nil {
		payload["arguments"] = []interface{}{arg}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest("POST", testAppURL+"/v1/api", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// getTestMessage polls the service API for the last message sent to phone.
func getTestMessage(t *testing.T, phone string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		body, _ := json.Marshal(map[string]interface{}{"method": "getTestMessage", "arguments": []string{phone}})
		resp, err := http.Post(testServiceApiURL+"/api", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		var out map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return out["data"].(map[string]interface{})
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("no test message for %s", phone)
	return nil
}

func TestIntegration_JsonApiPing(t *testing.T) {
	resp := callJsonApi(t, "", "ping", nil)
	assert.Equal(t, map[string]interface{}{"success": true, "data": "pong"}, resp)
}

func TestIntegration_NegotiateAndAccept(t *testing.T) {
	buyerToken := tokenFor(t, buyerID)
	sellerToken := tokenFor(t, sellerID)

	created := callJsonApi(t, buyerToken, "createNegotiation", map[string]interface{}{
		"sellerId":  sellerID,
		"productId": productID,
		"variantId": variantID,
		"amount":    map[string]interface{}{"amount": 90},
	})
	require.Equal(t, true, created["success"], created["error"])
	bidID := created["data"].(map[string]interface{})["id"].(string)

	countered := callJsonApi(t, sellerToken, "submitOffer", map[string]interface{}{
		"bidId":  bidID,
		"type":   "counterOffer",
		"amount": map[string]interface{}{"amount": 120},
	})
	require.Equal(t, true, countered["success"], countered["error"])
	assert.Equal(t, buyerID.String(), countered["data"].(map[string]interface{})["canAccept"])

	// The seller cannot accept their own counter-offer.
	premature := callJsonApi(t, sellerToken, "submitOffer", map[string]interface{}{"bidId": bidID, "type": "acceptedOffer"})
	assert.Equal(t, false, premature["success"])
	assert.Equal(t, "conflict", premature["code"])

	accepted := callJsonApi(t, buyerToken, "submitOffer", map[string]interface{}{"bidId": bidID, "type": "acceptedOffer"})
	require.Equal(t, true, accepted["success"], accepted["error"])

	msg := getTestMessage(t, sellerPhone)
	assert.Equal(t, sellerPhone, msg["phone"])
	assert.Contains(t, msg["text"], "blue-kurta")

	active := callJsonApi(t, buyerToken, "getActiveNegotiation", map[string]interface{}{"productId": productID, "variantId": variantID})
	require.Equal(t, true, active["success"], active["error"])
	data := active["data"].(map[string]interface{})
	assert.Equal(t, bidID, data["bidId"])
	assert.Equal(t, true, data["isValid"])
	assert.EqualValues(t, 120, data["offer"].(map[string]interface{})["amount"].(map[string]interface{})["amount"])

	closed := callJsonApi(t, sellerToken, "submitOffer", map[string]interface{}{"bidId": bidID, "type": "counterOffer", "amount": map[string]interface{}{"amount": 130}})
	assert.Equal(t, "conflict", closed["code"])

	notifications := callJsonApi(t, sellerToken, "myNotifications", nil)
	require.Equal(t, true, notifications["success"])
	assert.NotEmpty(t, notifications["data"])
}

func TestIntegration_RestListing(t *testing.T) {
	req, _ := http.NewRequest("GET", fmt.Sprintf("%s/v1/negotiations?product=%s&first=5", testAppURL, productID), nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, buyerID))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Contains(t, page, "pageInfo")
	assert.Contains(t, page, "totalCount")

	req, _ = http.NewRequest("GET", testAppURL+"/v1/negotiations?first=0", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, buyerID))
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}
