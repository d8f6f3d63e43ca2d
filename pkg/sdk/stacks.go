package sdk

import (
	"fmt"
	"net/url"
)

func (c *Client) ListStacks() ([]Stack, error) {
	var stacks []Stack
	err := c.get("/stacks", &stacks)
	return stacks, err
}

func (c *Client) GetStack(name string) (*Stack, error) {
	var stack Stack
	err := c.get("/stacks/"+url.PathEscape(name), &stack)
	return &stack, err
}

func (c *Client) CreateStack(stack Stack) error {
	return c.post("/stacks", stack, nil)
}

func (c *Client) UpdateStack(name string, members []string) error {
	return c.put("/stacks/"+url.PathEscape(name), map[string][]string{"members": members})
}

func (c *Client) DeleteStack(name string) error {
	return c.delete("/stacks/" + url.PathEscape(name))
}

func (c *Client) StartStack(name string) (map[string]string, error) {
	var results map[string]string
	err := c.post(fmt.Sprintf("/stacks/%s/start", url.PathEscape(name)), nil, &results)
	return results, err
}

func (c *Client) StopStack(name string) (map[string]string, error) {
	var results map[string]string
	err := c.post(fmt.Sprintf("/stacks/%s/stop", url.PathEscape(name)), nil, &results)
	return results, err
}

func (c *Client) GetStackStatus(name string) (*StatusResponse, error) {
	var status StatusResponse
	err := c.get(fmt.Sprintf("/stacks/%s/status", url.PathEscape(name)), &status)
	return &status, err
}
