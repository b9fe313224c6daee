package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"shop-assistant/internal/domain"
)

type productAttributeArgs struct {
	ProductID    int64  `json:"product_id" jsonschema:"description=商品ID"`
	AttributeKey string `json:"attribute_key" jsonschema:"description=属性名称"`
}

type attributeArgs struct {
	AttributeKey string `json:"attribute_key" jsonschema:"description=属性名称"`
}

type tool struct {
	def  domain.ToolDefinition
	call func(ctx context.Context, args json.RawMessage) (any, error)
}

// schemaFor reflects an inline JSON schema for a tool argument struct.
func schemaFor(v any) json.RawMessage {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	s := r.Reflect(v)
	s.Version = ""
	s.ID = ""
	raw, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("assistant: reflect tool schema: %v", err))
	}
	return raw
}

var (
	productAttributeSchema = schemaFor(&productAttributeArgs{})
	attributeSchema        = schemaFor(&attributeArgs{})
)

// commentaryTools exposes the attribute lookups to the model.
func (a *Assistant) commentaryTools() []tool {
	return []tool{
		{
			def: domain.ToolDefinition{
				Name:        "get_product_attribute_value",
				Description: "获取指定商品的指定属性信息",
				Parameters:  productAttributeSchema,
			},
			call: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var args productAttributeArgs
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, err
				}
				return nonNil(a.catalog.ProductAttribute(ctx, args.ProductID, args.AttributeKey)), nil
			},
		},
		{
			def: domain.ToolDefinition{
				Name:        "get_attribute_value",
				Description: "获取所有商品的指定属性信息",
				Parameters:  attributeSchema,
			},
			call: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var args attributeArgs
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, err
				}
				return nonNil(a.catalog.AttributeAcrossProducts(ctx, args.AttributeKey)), nil
			},
		},
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// runTool executes one tool call and renders its result for the model.
// Unknown tools and bad arguments are reported back to the model as errors.
func runTool(ctx context.Context, tools []tool, call domain.ToolCall) string {
	for _, t := range tools {
		if t.def.Name != call.Function.Name {
			continue
		}
		out, err := t.call(ctx, json.RawMessage(call.Function.Arguments))
		if err != nil {
			return toolError(fmt.Sprintf("invalid arguments: %v", err))
		}
		raw, err := json.Marshal(out)
		if err != nil {
			return toolError(err.Error())
		}
		return string(raw)
	}
	return toolError("unknown tool " + call.Function.Name)
}

func toolError(msg string) string {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return string(raw)
}
