package main

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/marelab/backsim/internal/types"
	"github.com/marelab/backsim/pkg/errors"
	"github.com/moznion/go-optional"
)

// loadSignals reads a signal replay file. Columns: time, symbol, side,
// action, order_type, quantity, limit_price, stop_price, target_order,
// strategy_name. Empty price cells mean "not set". Rows are returned sorted
// by time with the file order preserved for equal timestamps.
func loadSignals(path string) ([]types.Signal, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataNotFound, "failed to open signals file", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadBarData, "failed to read signals header", err)
	}

	column := make(map[string]int, len(header))
	for i, name := range header {
		column[name] = i
	}

	for _, required := range []string{"time", "symbol", "side", "action", "order_type", "quantity"} {
		if _, ok := column[required]; !ok {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "signals file missing column %q", required)
		}
	}

	var signals []types.Signal

	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeBadBarData, "failed to read signal row", err)
		}

		line++

		signal, err := parseSignalRecord(record, column, line)
		if err != nil {
			return nil, err
		}

		signals = append(signals, signal)
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Time.Before(signals[j].Time)
	})

	return signals, nil
}

func parseSignalRecord(record []string, column map[string]int, line int) (types.Signal, error) {
	cell := func(name string) string {
		i, ok := column[name]
		if !ok || i >= len(record) {
			return ""
		}

		return record[i]
	}

	t, err := time.Parse(time.RFC3339, cell("time"))
	if err != nil {
		return types.Signal{}, errors.Wrapf(errors.ErrCodeInvalidSignal, err, "invalid time on line %d", line)
	}

	quantity, err := strconv.ParseFloat(cell("quantity"), 64)
	if err != nil {
		return types.Signal{}, errors.Wrapf(errors.ErrCodeInvalidSignal, err, "invalid quantity on line %d", line)
	}

	limitPrice, err := parseOptionalPrice(cell("limit_price"), "limit_price", line)
	if err != nil {
		return types.Signal{}, err
	}

	stopPrice, err := parseOptionalPrice(cell("stop_price"), "stop_price", line)
	if err != nil {
		return types.Signal{}, err
	}

	return types.Signal{
		ID:            "signal-" + strconv.Itoa(line),
		Time:          t,
		Symbol:        cell("symbol"),
		Side:          types.Side(cell("side")),
		Action:        types.SignalAction(cell("action")),
		OrderType:     types.OrderType(cell("order_type")),
		Quantity:      quantity,
		LimitPrice:    limitPrice,
		StopPrice:     stopPrice,
		TargetOrderID: cell("target_order"),
		StrategyName:  cell("strategy_name"),
	}, nil
}

func parseOptionalPrice(cell, name string, line int) (optional.Option[float64], error) {
	if cell == "" {
		return optional.None[float64](), nil
	}

	value, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return optional.None[float64](), errors.Wrapf(errors.ErrCodeInvalidSignal, err, "invalid %s on line %d", name, line)
	}

	return optional.Some(value), nil
}
