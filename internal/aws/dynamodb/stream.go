package dynamodb

import (
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"tasnim.dev/role-grant/internal/cleanup"
)

// DecodeStreamEvent converts DynamoDB Streams records into cleanup events.
// Removal records carry the old image as their snapshot. Records whose image
// cannot be decoded are returned as errors alongside the decoded events so
// one bad record does not hide the rest of the batch.
func DecodeStreamEvent(ev events.DynamoDBEvent) ([]cleanup.Event, error) {
	out := make([]cleanup.Event, 0, len(ev.Records))
	var errs []error

	for _, r := range ev.Records {
		e := cleanup.Event{ID: r.EventID, Kind: cleanup.EventKind(r.EventName)}
		if e.Kind == cleanup.KindRemove {
			snap, err := decodeImage(r.Change.OldImage)
			if err != nil {
				errs = append(errs, fmt.Errorf("record %s: %w", r.EventID, err))
				continue
			}
			e.Snapshot = *snap.toRequest()
		}
		out = append(out, e)
	}
	return out, errors.Join(errs...)
}

func decodeImage(image map[string]events.DynamoDBAttributeValue) (record, error) {
	var rec record
	item := make(map[string]ddbtypes.AttributeValue, len(image))
	for k, v := range image {
		av, err := convertAttribute(v)
		if err != nil {
			return rec, fmt.Errorf("attribute %s: %w", k, err)
		}
		item[k] = av
	}
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func convertAttribute(v events.DynamoDBAttributeValue) (ddbtypes.AttributeValue, error) {
	switch v.DataType() {
	case events.DataTypeString:
		return &ddbtypes.AttributeValueMemberS{Value: v.String()}, nil
	case events.DataTypeNumber:
		return &ddbtypes.AttributeValueMemberN{Value: v.Number()}, nil
	case events.DataTypeBoolean:
		return &ddbtypes.AttributeValueMemberBOOL{Value: v.Boolean()}, nil
	case events.DataTypeNull:
		return &ddbtypes.AttributeValueMemberNULL{Value: true}, nil
	case events.DataTypeBinary:
		return &ddbtypes.AttributeValueMemberB{Value: v.Binary()}, nil
	case events.DataTypeStringSet:
		return &ddbtypes.AttributeValueMemberSS{Value: v.StringSet()}, nil
	case events.DataTypeNumberSet:
		return &ddbtypes.AttributeValueMemberNS{Value: v.NumberSet()}, nil
	case events.DataTypeBinarySet:
		return &ddbtypes.AttributeValueMemberBS{Value: v.BinarySet()}, nil
	case events.DataTypeList:
		list := v.List()
		out := make([]ddbtypes.AttributeValue, len(list))
		for i, item := range list {
			av, err := convertAttribute(item)
			if err != nil {
				return nil, err
			}
			out[i] = av
		}
		return &ddbtypes.AttributeValueMemberL{Value: out}, nil
	case events.DataTypeMap:
		m := v.Map()
		out := make(map[string]ddbtypes.AttributeValue, len(m))
		for k, item := range m {
			av, err := convertAttribute(item)
			if err != nil {
				return nil, err
			}
			out[k] = av
		}
		return &ddbtypes.AttributeValueMemberM{Value: out}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type %v", v.DataType())
	}
}
