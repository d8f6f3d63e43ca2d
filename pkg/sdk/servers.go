package sdk

import (
	"fmt"
	"net/url"
)

func (c *Client) ListServers() ([]Server, error) {
	var servers []Server
	err := c.get("/servers", &servers)
	return servers, err
}

func (c *Client) GetServer(name string) (*Server, error) {
	var server Server
	err := c.get("/servers/"+url.PathEscape(name), &server)
	return &server, err
}

func (c *Client) CreateServer(req Server) error {
	return c.post("/servers", req, nil)
}

func (c *Client) UpdateServer(name string, upd ServerUpdate) error {
	return c.put("/servers/"+url.PathEscape(name), upd)
}

func (c *Client) DeleteServer(name string) error {
	return c.delete("/servers/" + url.PathEscape(name))
}

func (c *Client) StartServer(name string) error {
	return c.post(fmt.Sprintf("/servers/%s/start", url.PathEscape(name)), nil, nil)
}

func (c *Client) StopServer(name string) error {
	return c.post(fmt.Sprintf("/servers/%s/stop", url.PathEscape(name)), nil, nil)
}

func (c *Client) RestartServer(name string) error {
	return c.post(fmt.Sprintf("/servers/%s/restart", url.PathEscape(name)), nil, nil)
}

func (c *Client) GetServerStatus(name string) (*StatusResponse, error) {
	var status StatusResponse
	err := c.get(fmt.Sprintf("/servers/%s/status", url.PathEscape(name)), &status)
	return &status, err
}

func (c *Client) GetServerLogs(name string, lines int) ([]string, error) {
	path := fmt.Sprintf("/servers/%s/logs", url.PathEscape(name))
	if lines > 0 {
		path += fmt.Sprintf("?lines=%d", lines)
	}
	var entries []string
	err := c.get(path, &entries)
	return entries, err
}

func (c *Client) ClearServerLogs(name string) error {
	return c.delete(fmt.Sprintf("/servers/%s/logs", url.PathEscape(name)))
}

func (c *Client) GetServerMetrics(name string) (*MetricsSnapshot, error) {
	var snapshot MetricsSnapshot
	err := c.get(fmt.Sprintf("/servers/%s/metrics", url.PathEscape(name)), &snapshot)
	return &snapshot, err
}

func (c *Client) GetMetricsHistory(name string, rangeSeconds float64) ([]MetricSample, error) {
	path := fmt.Sprintf("/servers/%s/metrics/history", url.PathEscape(name))
	if rangeSeconds > 0 {
		path += fmt.Sprintf("?range=%g", rangeSeconds)
	}
	var samples []MetricSample
	err := c.get(path, &samples)
	return samples, err
}

func (c *Client) GetSettings() (map[string]string, error) {
	var settings map[string]string
	err := c.get("/settings", &settings)
	return settings, err
}

func (c *Client) SetSettings(settings map[string]string) error {
	return c.put("/settings", settings)
}
