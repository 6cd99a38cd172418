package repository

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// amount stores a decimal as BSON Decimal128. It also reads doubles, integers and
// numeric strings so documents written by other clients still decode.
type amount decimal.Decimal

func (a amount) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d := decimal.Decimal(a)
	d128, ok := primitive.ParseDecimal128FromBigInt(d.Coefficient(), int(d.Exponent()))
	if !ok {
		return 0, nil, fmt.Errorf("amount %s does not fit in Decimal128", d.String())
	}
	return bson.MarshalValue(d128)
}

func (a *amount) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}

	switch t {
	case bsontype.Decimal128:
		bi, exp, err := raw.Decimal128().BigInt()
		if err != nil {
			return fmt.Errorf("failed to decode Decimal128 amount: %w", err)
		}
		*a = amount(decimal.NewFromBigInt(bi, int32(exp)))
	case bsontype.Double:
		*a = amount(decimal.NewFromFloat(raw.Double()))
	case bsontype.Int32:
		*a = amount(decimal.NewFromInt32(raw.Int32()))
	case bsontype.Int64:
		*a = amount(decimal.NewFromInt(raw.Int64()))
	case bsontype.String:
		d, err := decimal.NewFromString(raw.StringValue())
		if err != nil {
			return fmt.Errorf("failed to decode string amount: %w", err)
		}
		*a = amount(d)
	case bsontype.Null, bsontype.Undefined:
		*a = amount(decimal.Zero)
	default:
		return fmt.Errorf("cannot decode BSON %s into an amount", t)
	}
	return nil
}
