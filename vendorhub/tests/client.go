package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"vendorhub/vendorhub/services"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &loginInfo{Email: email, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(body io.Reader) *httpTestRequest {
	r.body = body
	return r
}

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrUnprocessable = errors.New("unprocessable")
)

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.json != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Set(k, v)
		}
	}

	if r.login != nil {
		req.SetBasicAuth(r.login.Email, r.login.Password)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		content := w.Body.String()
		switch res.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrUnauthorized, content)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrForbidden, content)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, content)
		case http.StatusConflict:
			return fmt.Errorf("%w: %v", ErrConflict, content)
		case http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %v", ErrUnprocessable, content)
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, content)
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

func (r *httpTestRequest) DoRaw() ([]byte, error) {
	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Set(k, v)
		}
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, w.Body.String())
		}
		return nil, fmt.Errorf("%v request to endpoint %v returned status %d", r.method, r.endpoint, res.StatusCode)
	}

	return io.ReadAll(res.Body)
}

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *client) signup(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/signup").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) login(login loginInfo) error {
	var res map[string]string
	err := c.Get("/user/login").Login(login.Email, login.Password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

func (c *client) addUser(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/create").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) deleteUser(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v", userId)).Do(nil)
}

func (c *client) promoteAdmin(userId string) error {
	return c.Post(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) demoteAdmin(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) listUsers() ([]services.UserInfo, error) {
	var res []services.UserInfo
	err := c.Get("/user/list").Do(&res)
	return res, err
}

func (c *client) userInfo() (services.UserInfo, error) {
	var res services.UserInfo
	err := c.Get("/user/info").Do(&res)
	return res, err
}

func (c *client) createProject(body map[string]string) (services.ProjectInfo, error) {
	var res services.ProjectInfo
	err := c.Post("/project/create").Json(body).Do(&res)
	return res, err
}

func (c *client) listProjects() ([]services.ProjectInfo, error) {
	var res []services.ProjectInfo
	err := c.Get("/project/list").Do(&res)
	return res, err
}

func (c *client) getProject(projectId string) (services.ProjectInfo, error) {
	var res services.ProjectInfo
	err := c.Get(fmt.Sprintf("/project/%v", projectId)).Do(&res)
	return res, err
}

func (c *client) updateProject(projectId string, body map[string]string) (services.ProjectInfo, error) {
	var res services.ProjectInfo
	err := c.Post(fmt.Sprintf("/project/%v/update", projectId)).Json(body).Do(&res)
	return res, err
}

func (c *client) updateStatus(projectId, status string) (services.ProjectInfo, error) {
	var res services.ProjectInfo
	err := c.Post(fmt.Sprintf("/project/%v/status", projectId)).Json(map[string]string{"status": status}).Do(&res)
	return res, err
}

type transitionsResponse struct {
	Status      string   `json:"status"`
	Transitions []string `json:"transitions"`
}

func (c *client) allowedTransitions(projectId string) (transitionsResponse, error) {
	var res transitionsResponse
	err := c.Get(fmt.Sprintf("/project/%v/transitions", projectId)).Do(&res)
	return res, err
}

func (c *client) deleteProject(projectId string) error {
	return c.Delete(fmt.Sprintf("/project/%v", projectId)).Do(nil)
}

func (c *client) createVendor(userId, displayName string) (services.VendorInfo, error) {
	var res services.VendorInfo
	err := c.Post("/vendor/create").Json(map[string]string{"user_id": userId, "display_name": displayName}).Do(&res)
	return res, err
}

func (c *client) listVendors() ([]services.VendorInfo, error) {
	var res []services.VendorInfo
	err := c.Get("/vendor/list").Do(&res)
	return res, err
}

func (c *client) vendorRankings(endpoint string) ([]services.VendorInfo, error) {
	var res []services.VendorInfo
	err := c.Get(endpoint).Do(&res)
	return res, err
}

type vendorDetail struct {
	services.VendorInfo
	Username string `json:"username"`
	History  []struct {
		ProjectName  string  `json:"project_name"`
		Role         string  `json:"role"`
		GlobalRating float64 `json:"global_rating"`
		Comment      string  `json:"comment"`
	} `json:"history"`
}

func (c *client) getVendor(vendorId string) (vendorDetail, error) {
	var res vendorDetail
	err := c.Get(fmt.Sprintf("/vendor/%v", vendorId)).Do(&res)
	return res, err
}

func (c *client) deleteVendor(vendorId string) error {
	return c.Delete(fmt.Sprintf("/vendor/%v", vendorId)).Do(nil)
}

func (c *client) assignVendor(projectId, vendorId string, body map[string]string) (string, error) {
	var res map[string]string
	err := c.Post(fmt.Sprintf("/participation/project/%v/vendor/%v", projectId, vendorId)).Json(body).Do(&res)
	return res["participation_id"], err
}

func (c *client) assignVendorWithContract(projectId, vendorId string, fields map[string]string, filename string, contract []byte) (string, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return "", err
		}
	}
	part, err := writer.CreateFormFile("contract", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(contract); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	var res map[string]string
	err = c.Post(fmt.Sprintf("/participation/project/%v/vendor/%v", projectId, vendorId)).
		Header("Content-Type", writer.FormDataContentType()).
		Body(body).
		Do(&res)
	return res["participation_id"], err
}

func (c *client) participants(projectId string) ([]services.ParticipantInfo, error) {
	var res []services.ParticipantInfo
	err := c.Get(fmt.Sprintf("/participation/project/%v/participants", projectId)).Do(&res)
	return res, err
}

func (c *client) assignableVendors(projectId string) ([]services.VendorInfo, error) {
	var res []services.VendorInfo
	err := c.Get(fmt.Sprintf("/participation/project/%v/assignable", projectId)).Do(&res)
	return res, err
}

func (c *client) updateAssignment(participationId string, body map[string]string) (services.AssignmentInfo, error) {
	var res services.AssignmentInfo
	err := c.Post(fmt.Sprintf("/participation/%v/update", participationId)).Json(body).Do(&res)
	return res, err
}

func (c *client) removeAssignment(participationId string) error {
	return c.Delete(fmt.Sprintf("/participation/%v", participationId)).Do(nil)
}

func (c *client) downloadContract(participationId string) ([]byte, error) {
	r := c.Get(fmt.Sprintf("/participation/%v/contract", participationId))
	return r.DoRaw()
}

type evaluationResult struct {
	EvaluationId string  `json:"evaluation_id"`
	GlobalRating float64 `json:"global_rating"`
	VendorScore  float64 `json:"vendor_score"`
}

func (c *client) saveEvaluation(participationId, comment string, details []map[string]interface{}) (evaluationResult, error) {
	var res evaluationResult
	err := c.Post(fmt.Sprintf("/evaluation/%v", participationId)).
		Json(map[string]interface{}{"comment": comment, "details": details}).
		Do(&res)
	return res, err
}

func (c *client) getEvaluation(participationId string) (services.EvaluationInfo, error) {
	var res services.EvaluationInfo
	err := c.Get(fmt.Sprintf("/evaluation/%v", participationId)).Do(&res)
	return res, err
}

func (c *client) createMetric(name, notes string) (services.MetricInfo, error) {
	var res services.MetricInfo
	err := c.Post("/metric/create").Json(map[string]string{"name": name, "notes": notes}).Do(&res)
	return res, err
}

func (c *client) listMetrics() ([]services.MetricInfo, error) {
	var res []services.MetricInfo
	err := c.Get("/metric/list").Do(&res)
	return res, err
}

func (c *client) deleteMetric(metricId string) error {
	return c.Delete(fmt.Sprintf("/metric/%v", metricId)).Do(nil)
}

type chatResponse struct {
	Answer  string `json:"answer"`
	History []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"history"`
}

func (c *client) chatMessage(message string, history []map[string]string) (chatResponse, error) {
	var res chatResponse
	err := c.Post("/chat/message").Json(map[string]interface{}{"message": message, "history": history}).Do(&res)
	return res, err
}

type tenderSummary struct {
	UploadId string `json:"upload_id"`
	Path     string `json:"path"`
	Summary  string `json:"summary"`
}

func (c *client) summarizeTender(filename string, document []byte, text string) (tenderSummary, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("text", text); err != nil {
		return tenderSummary{}, err
	}
	part, err := writer.CreateFormFile("tender", filename)
	if err != nil {
		return tenderSummary{}, err
	}
	if _, err := part.Write(document); err != nil {
		return tenderSummary{}, err
	}
	if err := writer.Close(); err != nil {
		return tenderSummary{}, err
	}

	var res tenderSummary
	err = c.Post("/chat/tender").
		Header("Content-Type", writer.FormDataContentType()).
		Body(body).
		Do(&res)
	return res, err
}
