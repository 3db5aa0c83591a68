package report

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"
)

func nopGenerator() Generator {
	return GeneratorFunc(func(context.Context, io.Writer, Payload, Options) error {
		return nil
	})
}

func fixedQuery(filter bson.M) QueryBuilder {
	return func(context.Context, Options) (Query, error) {
		return NewQuery(filter), nil
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	Convey("Given a registry with two generators", t, func() {
		generators := map[string]Generator{
			"orders":   nopGenerator(),
			"accounts": nopGenerator(),
			"broken":   nil,
		}
		registry := NewRegistry(RegistryOptions{
			Generators: generators,
			Queries: map[string]QueryBuilder{
				"orders": fixedQuery(bson.M{"status": "paid"}),
			},
			DefaultQuery: fixedQuery(bson.M{"deleted": false}),
		})

		Convey("registered models are known and listed in order", func() {
			So(registry.Is("orders"), ShouldBeTrue)
			So(registry.Is("accounts"), ShouldBeTrue)
			So(registry.Is("broken"), ShouldBeFalse)
			So(registry.Names(), ShouldResemble, []string{"accounts", "orders"})
		})

		Convey("unknown models have no generator", func() {
			gen, err := registry.Generator("invoices")
			So(gen, ShouldBeNil)
			So(errors.Is(err, ErrGeneratorNotFound), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, `"invoices"`)
		})

		Convey("model queries take precedence over the default", func() {
			q, err := registry.Query(ctx, "orders", nil)
			So(err, ShouldBeNil)
			So(q.Filter, ShouldResemble, bson.M{"status": "paid"})

			q, err = registry.Query(ctx, "accounts", nil)
			So(err, ShouldBeNil)
			So(q.Filter, ShouldResemble, bson.M{"deleted": false})
		})

		Convey("the source maps are copied", func() {
			generators["invoices"] = nopGenerator()
			So(registry.Is("invoices"), ShouldBeFalse)
		})

		Convey("With derives an extended registry", func() {
			extended := registry.With(RegistryOptions{
				Generators: map[string]Generator{"invoices": nopGenerator(), "orders": nil},
				Queries:    map[string]QueryBuilder{"accounts": fixedQuery(bson.M{"active": true})},
			})

			So(extended.Names(), ShouldResemble, []string{"accounts", "invoices", "orders"})
			So(registry.Is("invoices"), ShouldBeFalse)

			q, err := extended.Query(ctx, "accounts", nil)
			So(err, ShouldBeNil)
			So(q.Filter, ShouldResemble, bson.M{"active": true})

			q, err = extended.Query(ctx, "invoices", nil)
			So(err, ShouldBeNil)
			So(q.Filter, ShouldResemble, bson.M{"deleted": false})
		})
	})

	Convey("Given a registry with a data builder", t, func() {
		registry := NewRegistry(RegistryOptions{
			Generators: map[string]Generator{"totals": nopGenerator(), "orders": nopGenerator()},
			Data: map[string]DataBuilder{
				"totals": func(_ context.Context, opts Options) (interface{}, error) {
					return map[string]string{"from": opts["from"]}, nil
				},
				"broken": nil,
			},
		})

		Convey("only models with a builder are served by data", func() {
			So(registry.HasData("totals"), ShouldBeTrue)
			So(registry.HasData("orders"), ShouldBeFalse)
			So(registry.HasData("broken"), ShouldBeFalse)

			data, err := registry.Data(ctx, "totals", Options{"from": "2024-01-01"})
			So(err, ShouldBeNil)
			So(data, ShouldResemble, map[string]string{"from": "2024-01-01"})

			_, err = registry.Data(ctx, "orders", nil)
			So(errors.Is(err, ErrModelNotFound), ShouldBeTrue)
		})

		Convey("builder failures are wrapped with the model", func() {
			failing := registry.With(RegistryOptions{
				Data: map[string]DataBuilder{
					"totals": func(context.Context, Options) (interface{}, error) {
						return nil, ErrInvalidOption
					},
				},
			})
			_, err := failing.Data(ctx, "totals", nil)
			So(errors.Is(err, ErrInvalidOption), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, `model "totals"`)

			_, err = registry.Data(ctx, "totals", nil)
			So(err, ShouldBeNil)
		})
	})

	Convey("Given a registry without a default query builder", t, func() {
		registry := NewRegistry(RegistryOptions{
			Generators: map[string]Generator{"orders": nopGenerator()},
		})

		Convey("models without a query cannot be exported", func() {
			_, err := registry.Query(ctx, "orders", nil)
			So(errors.Is(err, ErrDefaultQueryBuilderNil), ShouldBeTrue)
		})

		Convey("builder failures are wrapped with the model", func() {
			failing := registry.With(RegistryOptions{
				Queries: map[string]QueryBuilder{
					"orders": func(context.Context, Options) (Query, error) {
						return Query{}, ErrInvalidOption
					},
				},
			})
			_, err := failing.Query(ctx, "orders", nil)
			So(errors.Is(err, ErrInvalidOption), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, `model "orders"`)
		})
	})
}

func TestDateRangeQuery(t *testing.T) {
	ctx := context.Background()

	Convey("When building a date range query", t, func() {
		Convey("no options match everything, newest first", func() {
			q, err := DateRangeQuery(ctx, Options{})
			So(err, ShouldBeNil)
			So(q.Filter, ShouldResemble, bson.M{})
			So(q.Direction, ShouldEqual, Descending)
			So(q.IDField, ShouldEqual, "_id")
		})

		Convey("dates and timestamps bound createdAt", func() {
			q, err := DateRangeQuery(ctx, Options{
				"from": "2024-01-01",
				"to":   "2024-02-01T12:00:00Z",
				"bot":  "false",
			})
			So(err, ShouldBeNil)
			So(q.Filter, ShouldResemble, bson.M{
				"createdAt": bson.M{
					"$gte": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
					"$lt":  time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
				},
				"bot": false,
			})
		})

		Convey("malformed values are rejected", func() {
			for _, opts := range []Options{
				{"from": "yesterday"},
				{"to": "2024-13-01"},
				{"bot": "maybe"},
			} {
				_, err := DateRangeQuery(ctx, opts)
				So(errors.Is(err, ErrInvalidOption), ShouldBeTrue)
			}
		})
	})
}
