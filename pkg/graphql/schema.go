package graphql

import (
	"fmt"

	"github.com/pharmakg/backend/pkg/store"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// NewSchema builds the read-only query schema over the pharmacopoeia graph.
// There is no mutation type; the executor rejects write attempts outright.
func NewSchema(storage store.GraphStorage) (graphql.Schema, error) {
	pharmacopoeiaType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Pharmacopoeia",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"name": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	medicineType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Medicine",
		Fields: graphql.Fields{},
	})
	medicineType.AddFieldConfig("doc_id", &graphql.Field{Type: graphql.NewNonNull(graphql.String)})
	medicineType.AddFieldConfig("name", &graphql.Field{Type: graphql.NewNonNull(graphql.String)})
	medicineType.AddFieldConfig("edition", &graphql.Field{Type: graphql.String})
	medicineType.AddFieldConfig("category", &graphql.Field{Type: graphql.String})
	medicineType.AddFieldConfig("name_pinyin", &graphql.Field{Type: graphql.String})
	medicineType.AddFieldConfig("name_en", &graphql.Field{Type: graphql.String})
	medicineType.AddFieldConfig("content", &graphql.Field{Type: graphql.String})
	medicineType.AddFieldConfig("pharmacopoeia", &graphql.Field{Type: pharmacopoeiaType})
	medicineType.AddFieldConfig("refersTo", &graphql.Field{
		Type:        graphql.NewList(medicineType),
		Description: "引用的通则或其他条目",
	})
	medicineType.AddFieldConfig("relatedByCategory", &graphql.Field{
		Type:        graphql.NewList(medicineType),
		Description: "同类别的相关药品",
	})

	volumeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Volume",
		Fields: graphql.Fields{
			"name": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	categoryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Category",
		Fields: graphql.Fields{
			"name":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"volume":      &graphql.Field{Type: graphql.Int},
			"range_start": &graphql.Field{Type: graphql.Int},
			"range_end":   &graphql.Field{Type: graphql.Int},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"medicines": &graphql.Field{
				Type: graphql.NewList(medicineType),
				Args: graphql.FieldConfigArgument{
					"name":     &graphql.ArgumentConfig{Type: graphql.String},
					"category": &graphql.ArgumentConfig{Type: graphql.String},
					"edition":  &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					params := store.SearchMedicinesParams{
						Name:     stringArg(p.Args, "name"),
						Category: stringArg(p.Args, "category"),
						Edition:  stringArg(p.Args, "edition"),
					}
					params.IncludeRefersTo = selectionRequested(p, "refersTo")
					params.IncludeRelated = selectionRequested(p, "relatedByCategory")

					medicines, err := storage.SearchMedicines(p.Context, params)
					if err != nil {
						return nil, fmt.Errorf("search medicines: %w", err)
					}
					return medicines, nil
				},
			},
			"volumes": &graphql.Field{
				Type: graphql.NewList(volumeType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return storage.ListVolumes(p.Context)
				},
			},
			"categories": &graphql.Field{
				Type: graphql.NewList(categoryType),
				Args: graphql.FieldConfigArgument{
					"volume": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return storage.ListCategories(p.Context, stringArg(p.Args, "volume"))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// selectionRequested reports whether the named field appears in the query's
// selection set, so relationship lookups only run when asked for.
func selectionRequested(p graphql.ResolveParams, name string) bool {
	for _, fieldAST := range p.Info.FieldASTs {
		if fieldAST.SelectionSet == nil {
			continue
		}
		for _, sel := range fieldAST.SelectionSet.Selections {
			field, ok := sel.(*ast.Field)
			if !ok || field.Name == nil {
				continue
			}
			if field.Name.Value == name {
				return true
			}
		}
	}
	return false
}
