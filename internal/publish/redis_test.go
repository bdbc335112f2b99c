package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rickgao/nft-market/internal/model"
)

var (
	contract = model.MustParseAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3")
	seller   = model.MustParseAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	buyer    = model.MustParseAddress("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")
)

func listing(id string, whole int64) model.Listing {
	return model.Listing{
		AssetContract: contract,
		AssetID:       id,
		Seller:        seller,
		Price:         model.FromWhole(decimal.NewFromInt(whole)),
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisPublisher_ListingKey(t *testing.T) {
	p := NewRedisPublisher(nil, RedisConfig{}, nil)
	got := p.ListingKey(model.AssetKey{Contract: contract, TokenID: "42"})
	want := "listing:0x5fbdb2315678afecb367f032d93f642f64180aa3:42"
	if got != want {
		t.Errorf("ListingKey() = %q, want %q", got, want)
	}
}

func TestRedisPublisher_CacheLifecycle(t *testing.T) {
	mr, client := newRedis(t)
	p := NewRedisPublisher(client, RedisConfig{}, nil)
	ctx := context.Background()
	l := listing("1", 1000)
	key := p.ListingKey(l.Key())

	if err := p.Publish(ctx, model.NewEvent(model.EventListingCreated, l)); err != nil {
		t.Fatalf("Publish(created) error = %v", err)
	}
	if got := mr.HGet(key, "seller"); got != seller.String() {
		t.Errorf("seller = %q, want %q", got, seller)
	}
	if got := mr.HGet(key, "price"); got != "1000000000000000000000" {
		t.Errorf("price = %q, want 1000000000000000000000", got)
	}
	if got := mr.HGet(key, "event_id"); got == "" {
		t.Error("event_id missing from listing hash")
	}

	sold := model.NewEvent(model.EventListingSold, l)
	sold.Buyer = buyer
	if err := p.Publish(ctx, sold); err != nil {
		t.Fatalf("Publish(sold) error = %v", err)
	}
	if mr.Exists(key) {
		t.Error("listing hash still present after sale")
	}
}

func TestRedisPublisher_RemoveDeletesHash(t *testing.T) {
	mr, client := newRedis(t)
	p := NewRedisPublisher(client, RedisConfig{ListingPrefix: "mkt:"}, nil)
	ctx := context.Background()
	l := listing("9", 5)

	_ = p.Publish(ctx, model.NewEvent(model.EventListingCreated, l))
	if !mr.Exists("mkt:" + contract.String() + ":9") {
		t.Fatal("listing hash not created under custom prefix")
	}

	_ = p.Publish(ctx, model.NewEvent(model.EventListingRemoved, l))
	if mr.Exists("mkt:" + contract.String() + ":9") {
		t.Error("listing hash still present after removal")
	}
}

func TestRedisPublisher_PurgeListings(t *testing.T) {
	mr, client := newRedis(t)
	p := NewRedisPublisher(client, RedisConfig{}, nil)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		mr.HSet(fmt.Sprintf("listing:%s:%d", contract, i), "seller", seller.String())
	}
	if err := mr.Set("session:1", "keep"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	removed, err := p.PurgeListings(ctx)
	if err != nil {
		t.Fatalf("PurgeListings() error = %v", err)
	}
	if removed != 250 {
		t.Errorf("removed = %d, want 250", removed)
	}
	if keys := mr.Keys(); len(keys) != 1 || keys[0] != "session:1" {
		t.Errorf("remaining keys = %v, want [session:1]", keys)
	}

	removed, err = p.PurgeListings(ctx)
	if err != nil {
		t.Fatalf("PurgeListings() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("second purge removed = %d, want 0", removed)
	}
}

func TestRedisPublisher_PublishesToChannel(t *testing.T) {
	_, client := newRedis(t)
	p := NewRedisPublisher(client, RedisConfig{Channel: "test.events"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "test.events")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("Subscribe error = %v", err)
	}

	e := model.NewEvent(model.EventListingCreated, listing("3", 7))
	if err := p.Publish(ctx, e); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("ReceiveMessage() error = %v", err)
	}

	var got model.Event
	if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
		t.Fatalf("payload is not an event: %v", err)
	}
	if got.ID != e.ID {
		t.Errorf("ID = %s, want %s", got.ID, e.ID)
	}
	if got.Type != model.EventListingCreated {
		t.Errorf("Type = %s, want %s", got.Type, model.EventListingCreated)
	}
	if !got.Price.Equal(e.Price) {
		t.Errorf("Price = %s, want %s", got.Price, e.Price)
	}
}

func TestRedisPublisher_ServerDown(t *testing.T) {
	mr, client := newRedis(t)
	p := NewRedisPublisher(client, RedisConfig{}, nil)
	mr.Close()

	err := p.Publish(context.Background(), model.NewEvent(model.EventListingCreated, listing("1", 1)))
	if err == nil {
		t.Error("Publish() error = nil, want error with server down")
	}
}
