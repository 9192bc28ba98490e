package bigip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/netonboard/netonboard/pkg/engine"
)

const (
	transactionPath = "/tm/transaction"
	deviceGroupPath = "/tm/cm/device-group"
)

// transaction is the device's view of an open transaction.
type transaction struct {
	TransID       json.Number `json:"transId"`
	State         string      `json:"state"`
	FailureReason string      `json:"failureReason"`
}

// Transaction applies ops atomically: it opens a transaction, queues every
// op under its coordination id and commits. If queueing fails the
// transaction is discarded.
func (c *Client) Transaction(ctx context.Context, ops []engine.TransactionOp) error {
	if len(ops) == 0 {
		return nil
	}

	body, err := c.do(ctx, http.MethodPost, transactionPath, struct{}{}, nil)
	if err != nil {
		return err
	}

	var tx transaction
	if err := json.Unmarshal(body, &tx); err != nil || tx.TransID == "" {
		return fmt.Errorf("device returned no transaction id")
	}
	id := tx.TransID.String()

	header := http.Header{coordinationHeader: []string{id}}
	for _, op := range ops {
		method := strings.ToUpper(op.Method)
		if _, err := c.do(ctx, method, op.Path, nil, header); err != nil {
			c.discard(ctx, id)
			return err
		}
	}

	body, err = c.do(ctx, http.MethodPatch, transactionPath+"/"+id, map[string]string{"state": "VALIDATING"}, nil)
	if err != nil {
		return err
	}

	var result transaction
	if err := json.Unmarshal(body, &result); err == nil && result.State == "FAILED" {
		reason := result.FailureReason
		if reason == "" {
			reason = "transaction " + id + " failed"
		}
		return &APIError{StatusCode: http.StatusOK, Message: reason, Method: http.MethodPatch, Path: transactionPath + "/" + id}
	}

	c.logger.Debugf("transaction %s committed with %d operations", id, len(ops))
	return nil
}

// discard deletes an uncommitted transaction. Failures are only logged.
func (c *Client) discard(ctx context.Context, id string) {
	if _, err := c.do(context.WithoutCancel(ctx), http.MethodDelete, transactionPath+"/"+id, nil, nil); err != nil {
		c.logger.WithError(err).Warnf("failed to discard transaction %s", id)
	}
}

// DeleteDeviceGroup removes every device from the group and then the group
// itself. A group that does not exist is not an error.
func (c *Client) DeleteDeviceGroup(ctx context.Context, name string) error {
	groupPath := deviceGroupPath + "/~Common~" + name

	items, err := c.List(ctx, groupPath+"/devices")
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	var devices []struct {
		Name string `json:"name"`
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &devices); err != nil {
			return fmt.Errorf("failed to decode devices of %s: %w", name, err)
		}
	}

	for _, device := range devices {
		if err := c.Delete(ctx, groupPath+"/devices/"+device.Name); err != nil && !IsNotFound(err) {
			return err
		}
	}

	if err := c.Delete(ctx, groupPath); err != nil && !IsNotFound(err) {
		return err
	}

	c.logger.Debugf("device group %s deleted (%d devices removed)", name, len(devices))
	return nil
}
