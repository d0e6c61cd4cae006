package main

import (
	"io"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"order-sync/internal/ordersync"
	"order-sync/internal/service/importer"
	"order-sync/internal/service/syncrun"
)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func renderReport(w io.Writer, rep syncrun.Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("table", "inserted", "updated", "errors")

	for _, name := range sortedKeys(rep.Results) {
		st := rep.Results[name]
		if err := table.Append(name, itoa64(st.Inserted), itoa64(st.Updated), strconv.Itoa(st.Errors)); err != nil {
			return err
		}
	}
	if err := table.Append("total", itoa64(rep.Inserted()), itoa64(rep.Updated()), strconv.Itoa(rep.Errors)); err != nil {
		return err
	}

	return table.Render()
}

func renderPlan(w io.Writer, plan map[string]ordersync.PlanStats) error {
	table := tablewriter.NewWriter(w)
	table.Header("table", "would insert", "would update")

	for _, name := range sortedKeys(plan) {
		ps := plan[name]
		if err := table.Append(name, itoa64(ps.WouldInsert), itoa64(ps.WouldUpdate)); err != nil {
			return err
		}
	}

	return table.Render()
}

func renderImport(w io.Writer, res importer.Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("file", "rows", "inserted", "updated", "duplicates", "errors")

	if err := table.Append(res.File,
		strconv.Itoa(res.Rows),
		strconv.Itoa(res.Inserted),
		strconv.Itoa(res.Updated),
		strconv.Itoa(res.Duplicates),
		strconv.Itoa(res.Errors),
	); err != nil {
		return err
	}

	return table.Render()
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}
